// Package value defines the runtime representation of values.
//
// Every value is a 64-bit word with the type in the low bits:
//
//	None  -> 0
//	False -> 2
//	True  -> 4
//	n     -> 2n+1
//
// Integers are always odd, everything else is even.
// Encoding is strictly monotonic so ordering and equality
// of integers may be computed on encoded words directly.
package value

import "strconv"

type (
	Word int64
)

const (
	None  Word = 0
	False Word = 2
	True  Word = 4
)

const (
	MaxInt = 1<<62 - 1
	MinInt = -1 << 62
)

func Encode(n int64) Word {
	return Word(n<<1 | 1)
}

func Decode(w Word) int64 {
	return int64(w) >> 1
}

func EncodeBool(b bool) Word {
	if b {
		return True
	}

	return False
}

func InRange(n int64) bool {
	return n >= MinInt && n <= MaxInt
}

func IsInt(w Word) bool {
	return w&1 == 1
}

func IsBool(w Word) bool {
	return w == True || w == False
}

// Format renders a word the way the host print procedure does.
func Format(w Word) string {
	switch {
	case IsInt(w):
		return strconv.FormatInt(Decode(w), 10)
	case w == None:
		return "None"
	case w == True:
		return "True"
	case w == False:
		return "False"
	default:
		return "<invalid " + strconv.FormatInt(int64(w), 10) + ">"
	}
}
