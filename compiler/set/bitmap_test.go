package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitmap(t *testing.T) {
	var s Bitmap

	assert.False(t, s.IsSet(0))
	assert.Equal(t, 0, s.Len())

	for _, i := range []int{0, 3, 63, 64, 200} {
		s.Set(i)
	}

	assert.True(t, s.IsSet(63))
	assert.True(t, s.IsSet(64))
	assert.False(t, s.IsSet(65))
	assert.False(t, s.IsSet(-1))
	assert.Equal(t, 5, s.Size())
	assert.Equal(t, 201, s.Len())

	s.Clear(200)
	s.Clear(1000)

	var got []int

	s.Range(func(i int) bool {
		got = append(got, i)
		return i < 63
	})

	assert.Equal(t, []int{0, 3, 63}, got)
	assert.Equal(t, 65, s.Len())
}

func TestMakeBitmap(t *testing.T) {
	s := MakeBitmap(130)

	assert.Len(t, s.b, 3)
	assert.Equal(t, 0, s.Size())
}
