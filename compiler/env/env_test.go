package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/pywat/compiler/tp"
)

func TestGlobalSlots(t *testing.T) {
	e := New()

	x, err := e.DeclareGlobal("x", tp.Int)
	require.NoError(t, err)

	y, err := e.DeclareGlobal("y", tp.Bool)
	require.NoError(t, err)

	assert.Equal(t, Binding{Name: "x", Type: tp.Int, Class: Global, Slot: 0}, x)
	assert.Equal(t, Binding{Name: "y", Type: tp.Bool, Class: Global, Slot: 1}, y)
	assert.Equal(t, 8, y.Addr())

	_, err = e.DeclareGlobal("x", tp.Int)
	assert.Equal(t, DuplicateError{Name: "x"}, err)

	z, err := e.DeclareGlobal("z", tp.Int)
	require.NoError(t, err)
	assert.Equal(t, 2, z.Slot, "failed declaration must not consume a slot")

	assert.Equal(t, []Binding{x, y, z}, e.Globals())
	assert.Equal(t, 3, e.Slots())
	assert.Equal(t, 1, e.MemoryPages())
}

func TestFunctionScope(t *testing.T) {
	e := New()

	g, err := e.DeclareGlobal("g", tp.Int)
	require.NoError(t, err)

	_, err = e.DeclareGlobal("a", tp.Bool)
	require.NoError(t, err)

	s := e.Scope("f")
	assert.False(t, s.IsTop())
	assert.Equal(t, "f", s.Func())

	b, ok := s.Lookup("g")
	require.True(t, ok)
	assert.Equal(t, g, b)
	assert.False(t, s.IsBoundHere("g"))

	// parameter shadows global
	a, err := s.DeclareLocal("a", tp.Int)
	require.NoError(t, err)
	assert.Equal(t, Binding{Name: "a", Type: tp.Int, Class: Local, Slot: 0}, a)

	l, err := s.DeclareLocal("l", tp.Bool)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Slot)
	assert.Equal(t, 2, s.Locals())

	_, err = s.DeclareLocal("a", tp.Int)
	assert.Equal(t, DuplicateError{Name: "a"}, err)

	_, err = s.DeclareGlobal("q", tp.Int)
	assert.Error(t, err)

	// parent scope is not affected
	b, ok = e.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, Global, b.Class)
	assert.Equal(t, tp.Bool, b.Type)

	_, ok = e.Lookup("l")
	assert.False(t, ok)

	// sibling scope starts empty
	s2 := e.Scope("h")
	_, ok = s2.Lookup("l")
	assert.False(t, ok)

	_, err = e.DeclareLocal("t", tp.Int)
	assert.Error(t, err)
}

func TestSlotsNeverReused(t *testing.T) {
	e := New()

	for i := 0; i < 10; i++ {
		_, err := e.DeclareGlobal(string(rune('a'+i)), tp.Int)
		require.NoError(t, err)

		s := e.Scope("f")
		_, err = s.DeclareLocal("p", tp.Int)
		require.NoError(t, err)
	}

	for i, b := range e.Globals() {
		assert.Equal(t, i, b.Slot)
	}
}

func TestSignatures(t *testing.T) {
	e := New()

	sig := Signature{Params: []tp.Type{tp.Int, tp.Bool}, Ret: tp.Int}

	require.NoError(t, e.DefineFunc("f", sig))
	assert.Equal(t, DuplicateError{Name: "f"}, e.DefineFunc("f", Signature{}))

	got, ok := e.Scope("g").LookupFunc("f")
	require.True(t, ok)
	assert.Equal(t, sig, got)

	_, ok = e.LookupFunc("nope")
	assert.False(t, ok)

	require.NoError(t, e.Reserve("f"))
	assert.Equal(t, DuplicateError{Name: "f"}, e.Reserve("f"))

	_, err := e.DeclareGlobal("f", tp.Int)
	assert.Error(t, err)
}

func TestMemoryPages(t *testing.T) {
	e := New()
	assert.Equal(t, 1, e.MemoryPages())

	for i := 0; i < PageSize/WordSize+1; i++ {
		e.next++
	}

	assert.Equal(t, 2, e.MemoryPages())
}
