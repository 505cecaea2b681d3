package host

import (
	"io"
	"sync"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/pywat/compiler/value"
)

type (
	// Host implements the procedures compiled programs import.
	// Arguments and results are tagged words.
	Host struct {
		w io.Writer

		mu      sync.Mutex
		printed []value.Word
		buf     []byte
	}

	Func = func(args []int64) (int64, error)
)

func New(w io.Writer) *Host {
	return &Host{w: w}
}

// Imports returns the procedures by the name they are imported under.
func (h *Host) Imports() map[string]Func {
	return map[string]Func{
		"print": h.unary(h.Print),
		"abs":   h.unary(h.Abs),
		"max":   h.binary(h.Max),
		"min":   h.binary(h.Min),
		"pow":   h.binary(h.Pow),
	}
}

// Printed returns the words passed to Print so far.
func (h *Host) Printed() []value.Word {
	defer h.mu.Unlock()
	h.mu.Lock()

	return append([]value.Word(nil), h.printed...)
}

// Print writes the rendered value and a newline and returns its argument.
func (h *Host) Print(x value.Word) (value.Word, error) {
	defer h.mu.Unlock()
	h.mu.Lock()

	h.printed = append(h.printed, x)

	tlog.V("host").Printw("print", "word", int64(x), "value", value.Format(x))

	if h.w == nil {
		return x, nil
	}

	h.buf = hfmt.Appendf(h.buf[:0], "%s\n", value.Format(x))

	_, err := h.w.Write(h.buf)
	if err != nil {
		return x, errors.Wrap(err, "write")
	}

	return x, nil
}

func (h *Host) Abs(x value.Word) (value.Word, error) {
	n, err := integer(x)
	if err != nil {
		return 0, err
	}

	if n < 0 {
		n = -n
	}

	return value.Encode(n), nil
}

func (h *Host) Max(x, y value.Word) (value.Word, error) {
	if err := integers(x, y); err != nil {
		return 0, err
	}

	// encoding preserves order
	if x < y {
		return y, nil
	}

	return x, nil
}

func (h *Host) Min(x, y value.Word) (value.Word, error) {
	if err := integers(x, y); err != nil {
		return 0, err
	}

	if y < x {
		return y, nil
	}

	return x, nil
}

// Pow raises x to the power y.
// Negative exponents truncate toward zero as integer division does.
func (h *Host) Pow(x, y value.Word) (value.Word, error) {
	if err := integers(x, y); err != nil {
		return 0, err
	}

	base, exp := value.Decode(x), value.Decode(y)

	if exp < 0 {
		switch base {
		case 0:
			return 0, errors.New("pow: zero to negative power")
		case 1:
			return value.Encode(1), nil
		case -1:
			if exp%2 == 0 {
				return value.Encode(1), nil
			}

			return value.Encode(-1), nil
		default:
			return value.Encode(0), nil
		}
	}

	r := int64(1)

	for exp > 0 {
		if exp&1 != 0 {
			r *= base
		}

		base *= base
		exp >>= 1
	}

	return value.Encode(r), nil
}

func (h *Host) unary(f func(value.Word) (value.Word, error)) Func {
	return func(args []int64) (int64, error) {
		if len(args) != 1 {
			return 0, errors.New("expected 1 argument, got %d", len(args))
		}

		r, err := f(value.Word(args[0]))

		return int64(r), err
	}
}

func (h *Host) binary(f func(x, y value.Word) (value.Word, error)) Func {
	return func(args []int64) (int64, error) {
		if len(args) != 2 {
			return 0, errors.New("expected 2 arguments, got %d", len(args))
		}

		r, err := f(value.Word(args[0]), value.Word(args[1]))

		return int64(r), err
	}
}

func integer(x value.Word) (int64, error) {
	if !value.IsInt(x) {
		return 0, errors.New("not an int: %v", value.Format(x))
	}

	return value.Decode(x), nil
}

func integers(x, y value.Word) error {
	if _, err := integer(x); err != nil {
		return err
	}

	_, err := integer(y)

	return err
}
