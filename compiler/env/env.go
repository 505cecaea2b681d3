package env

import (
	"src.elv.sh/pkg/persistent/hash"
	"src.elv.sh/pkg/persistent/hashmap"
	"src.elv.sh/pkg/persistent/vector"
	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/pywat/compiler/tp"
)

type (
	Class int

	Binding struct {
		Name  string
		Type  tp.Type
		Class Class

		// Slot is the global memory slot, or the local index
		// within the activation record.
		Slot int
	}

	Signature struct {
		Params []tp.Type
		Ret    tp.Type
	}

	// Env is one lexical scope.
	// Nested scopes share the global allocator and signature table
	// but keep their own copy of visible names.
	Env struct {
		*shared

		names hashmap.Map // string -> Binding
		here  hashmap.Map // string -> struct{}, names bound in this scope

		fn     string
		locals int
	}

	shared struct {
		next    int           // next global slot
		globals vector.Vector // of Binding, in slot order
		funcs   hashmap.Map   // string -> Signature
	}

	DuplicateError struct {
		Name string
	}
)

const (
	Global Class = iota
	Local
)

const (
	WordSize = 8
	PageSize = 1 << 16
)

func New() *Env {
	return &Env{
		shared: &shared{
			globals: vector.Empty,
			funcs:   emptyMap(),
		},
		names: emptyMap(),
		here:  emptyMap(),
	}
}

// Scope opens function scope nested into e.
// It sees everything e sees but binds nothing locally yet.
func (e *Env) Scope(fn string) *Env {
	return &Env{
		shared: e.shared,
		names:  e.names,
		here:   emptyMap(),
		fn:     fn,
	}
}

// Func is the name of the function the scope belongs to.
// Empty at the top level.
func (e *Env) Func() string { return e.fn }

func (e *Env) IsTop() bool { return e.fn == "" }

func (e *Env) DeclareGlobal(name string, t tp.Type) (b Binding, err error) {
	if !e.IsTop() {
		return b, errors.New("global %v declared in function %v", name, e.fn)
	}

	if e.IsBoundHere(name) {
		return b, DuplicateError{Name: name}
	}

	b = Binding{
		Name:  name,
		Type:  t,
		Class: Global,
		Slot:  e.next,
	}

	e.next++
	e.globals = e.globals.Conj(b)

	e.bind(b)

	tlog.V("alloc").Printw("global slot", "binding", b, "from", loc.Caller(1))

	return b, nil
}

func (e *Env) DeclareLocal(name string, t tp.Type) (b Binding, err error) {
	if e.IsTop() {
		return b, errors.New("local %v declared at top level", name)
	}

	if e.IsBoundHere(name) {
		return b, DuplicateError{Name: name}
	}

	b = Binding{
		Name:  name,
		Type:  t,
		Class: Local,
		Slot:  e.locals,
	}

	e.locals++

	e.bind(b)

	tlog.V("alloc").Printw("local", "func", e.fn, "binding", b, "from", loc.Caller(1))

	return b, nil
}

// Reserve marks name as bound in this scope without a storage.
// Used for function names sharing the top-level namespace.
func (e *Env) Reserve(name string) error {
	if e.IsBoundHere(name) {
		return DuplicateError{Name: name}
	}

	e.here = e.here.Assoc(name, struct{}{})

	return nil
}

func (e *Env) bind(b Binding) {
	e.names = e.names.Assoc(b.Name, b)
	e.here = e.here.Assoc(b.Name, struct{}{})
}

func (e *Env) Lookup(name string) (Binding, bool) {
	v, ok := e.names.Index(name)
	if !ok {
		return Binding{}, false
	}

	return v.(Binding), true
}

func (e *Env) IsBoundHere(name string) bool {
	_, ok := e.here.Index(name)
	return ok
}

func (e *Env) DefineFunc(name string, sig Signature) error {
	if _, ok := e.funcs.Index(name); ok {
		return DuplicateError{Name: name}
	}

	e.funcs = e.funcs.Assoc(name, sig)

	return nil
}

func (e *Env) LookupFunc(name string) (Signature, bool) {
	v, ok := e.funcs.Index(name)
	if !ok {
		return Signature{}, false
	}

	return v.(Signature), true
}

// Globals returns global bindings in slot order.
func (e *Env) Globals() []Binding {
	r := make([]Binding, 0, e.globals.Len())

	for it := e.globals.Iterator(); it.HasElem(); it.Next() {
		r = append(r, it.Elem().(Binding))
	}

	return r
}

// Slots is the number of global slots allocated so far.
func (e *Env) Slots() int { return e.next }

// Locals is the number of locals bound in this scope.
func (e *Env) Locals() int { return e.locals }

// MemoryPages is the number of linear memory pages
// needed to hold all the globals. At least one.
func (e *Env) MemoryPages() int {
	n := (e.next*WordSize + PageSize - 1) / PageSize
	if n == 0 {
		n = 1
	}

	return n
}

func (b Binding) Addr() int {
	return b.Slot * WordSize
}

func (b Binding) IsLocal() bool { return b.Class == Local }

func (c Class) String() string {
	if c == Local {
		return "local"
	}

	return "global"
}

func (b Binding) TlogAppend(buf []byte) []byte {
	var e tlwire.Encoder

	buf = e.AppendMap(buf, 4)

	buf = e.AppendString(buf, "name")
	buf = e.AppendString(buf, b.Name)
	buf = e.AppendString(buf, "type")
	buf = e.AppendString(buf, b.Type.String())
	buf = e.AppendString(buf, "class")
	buf = e.AppendString(buf, b.Class.String())
	buf = e.AppendKeyInt(buf, "slot", b.Slot)

	return buf
}

func (e DuplicateError) Error() string {
	return "duplicate declaration: " + e.Name
}

func emptyMap() hashmap.Map {
	return hashmap.New(equalKeys, hashKey)
}

func equalKeys(a, b any) bool {
	return a.(string) == b.(string)
}

func hashKey(k any) uint32 {
	return hash.String(k.(string))
}
