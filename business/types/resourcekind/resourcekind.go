// Package resourcekind represents the kind of a bookable resource.
package resourcekind

import "fmt"

// The set of resource kinds.
var (
	Staff = newKind("staff")
	Room  = newKind("room")
)

var kinds = make(map[string]Kind)

// Kind represents what a bookable resource is.
type Kind struct {
	value string
}

func newKind(kind string) Kind {
	k := Kind{kind}
	kinds[kind] = k
	return k
}

// String returns the name of the kind.
func (k Kind) String() string {
	return k.value
}

// Equal provides support for the go-cmp package and testing.
func (k Kind) Equal(k2 Kind) bool {
	return k.value == k2.value
}

// MarshalText provides support for logging and any marshal needs.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.value), nil
}

// Parse parses the string value and returns a kind if one exists.
func Parse(value string) (Kind, error) {
	kind, exists := kinds[value]
	if !exists {
		return Kind{}, fmt.Errorf("invalid resource kind %q", value)
	}

	return kind, nil
}

// MustParse parses the string value and returns a kind if one exists. If
// an error occurs the function panics.
func MustParse(value string) Kind {
	kind, err := Parse(value)
	if err != nil {
		panic(err)
	}

	return kind
}
