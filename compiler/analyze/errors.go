package analyze

import (
	"fmt"
	"strings"
)

type (
	Kind int

	// Error is a checked compile error.
	// errors.Is(err, Kind) matches errors of that kind.
	Error struct {
		Kind    Kind
		Subject string

		Expected string
		Actual   string
	}
)

const (
	_ Kind = iota
	UnboundName
	DuplicateDeclaration
	TypeMismatch
	ArityMismatch
	UnsupportedOperator
	UnsupportedConstruct
	IntegerOverflow
)

func (k Kind) String() string {
	switch k {
	case UnboundName:
		return "unbound name"
	case DuplicateDeclaration:
		return "duplicate declaration"
	case TypeMismatch:
		return "type mismatch"
	case ArityMismatch:
		return "arity mismatch"
	case UnsupportedOperator:
		return "unsupported operator"
	case UnsupportedConstruct:
		return "unsupported construct"
	case IntegerOverflow:
		return "integer overflow"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) Error() string { return k.String() }

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(e.Kind.String())

	if e.Subject != "" {
		b.WriteString(": ")
		b.WriteString(e.Subject)
	}

	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&b, ": expected %s, got %s", e.Expected, e.Actual)
	}

	return b.String()
}

func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func newError(k Kind, subj string, args ...any) *Error {
	return &Error{Kind: k, Subject: fmt.Sprintf(subj, args...)}
}

func mismatch(subj string, exp, act fmt.Stringer) *Error {
	return &Error{
		Kind:     TypeMismatch,
		Subject:  subj,
		Expected: exp.String(),
		Actual:   act.String(),
	}
}
