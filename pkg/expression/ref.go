package expression

import (
	"strconv"
	"strings"
)

// Ref addresses an expression by index or by name. The zero Ref is unset,
// so Index(0) is a valid request distinct from "no expression".
type Ref struct {
	index  int
	name   string
	byName bool
	set    bool
}

// Index refers to the expression at position i.
func Index(i int) Ref {
	return Ref{index: i, set: true}
}

// Name refers to the expression named n.
func Name(n string) Ref {
	return Ref{name: n, byName: true, set: true}
}

// ParseRef reads a decimal index or a name. An empty string is unset.
func ParseRef(s string) Ref {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}
	}
	if i, err := strconv.Atoi(s); err == nil {
		return Index(i)
	}
	return Name(s)
}

// IsSet reports whether r refers to anything.
func (r Ref) IsSet() bool { return r.set }

// String implements fmt.Stringer.
func (r Ref) String() string {
	switch {
	case !r.set:
		return "<unset>"
	case r.byName:
		return r.name
	default:
		return strconv.Itoa(r.index)
	}
}
