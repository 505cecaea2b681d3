package tp

type (
	// Type is a static type of the language. The set is closed.
	Type int
)

const (
	None Type = iota
	Bool
	Int
)

func (t Type) String() string {
	switch t {
	case None:
		return "<None>"
	case Bool:
		return "bool"
	case Int:
		return "int"
	default:
		return "<invalid>"
	}
}

// Parse parses type annotation as written in source.
func Parse(s string) (Type, bool) {
	switch s {
	case "int":
		return Int, true
	case "bool":
		return Bool, true
	case "None", "<None>", "":
		return None, true
	default:
		return None, false
	}
}
