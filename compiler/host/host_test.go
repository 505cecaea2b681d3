package host

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/pywat/compiler/value"
)

func TestPrint(t *testing.T) {
	var buf bytes.Buffer

	h := New(&buf)

	for _, w := range []value.Word{value.Encode(1), value.True, value.False, value.None, value.Encode(-42)} {
		r, err := h.Print(w)
		require.NoError(t, err)
		assert.Equal(t, w, r)
	}

	assert.Equal(t, "1\nTrue\nFalse\nNone\n-42\n", buf.String())
	assert.Equal(t, []value.Word{3, 4, 2, 0, value.Encode(-42)}, h.Printed())
}

func TestArith(t *testing.T) {
	h := New(nil)

	for _, tc := range []struct {
		name string
		args []int64
		want int64
	}{
		{"abs", []int64{-5}, 5},
		{"abs", []int64{7}, 7},
		{"max", []int64{2, 3}, 3},
		{"max", []int64{-2, -3}, -2},
		{"min", []int64{2, 3}, 2},
		{"min", []int64{-2, -3}, -3},
		{"pow", []int64{2, 10}, 1024},
		{"pow", []int64{-3, 3}, -27},
		{"pow", []int64{5, 0}, 1},
		{"pow", []int64{2, -1}, 0},
		{"pow", []int64{-1, -3}, -1},
		{"pow", []int64{1, -7}, 1},
	} {
		args := make([]int64, len(tc.args))
		for i, a := range tc.args {
			args[i] = int64(value.Encode(a))
		}

		r, err := h.Imports()[tc.name](args)
		require.NoError(t, err, "%v %v", tc.name, tc.args)
		assert.Equal(t, tc.want, value.Decode(value.Word(r)), "%v %v", tc.name, tc.args)
	}
}

func TestErrors(t *testing.T) {
	h := New(nil)
	im := h.Imports()

	_, err := im["abs"]([]int64{int64(value.True)})
	assert.Error(t, err)

	_, err = im["max"]([]int64{3})
	assert.Error(t, err)

	_, err = im["pow"]([]int64{int64(value.Encode(0)), int64(value.Encode(-1))})
	assert.Error(t, err)
}
