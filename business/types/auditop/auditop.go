// Package auditop represents the kind of mutation an audit record captures.
package auditop

import "fmt"

// The set of audited operations.
var (
	Insert    = newOp("INSERT")
	Update    = newOp("UPDATE")
	Delete    = newOp("DELETE")
	Anonymize = newOp("ANONYMIZE")
)

var ops = make(map[string]Op)

// Op represents an audited operation.
type Op struct {
	value string
}

func newOp(op string) Op {
	o := Op{op}
	ops[op] = o
	return o
}

// String returns the name of the operation.
func (o Op) String() string {
	return o.value
}

// Equal provides support for the go-cmp package and testing.
func (o Op) Equal(o2 Op) bool {
	return o.value == o2.value
}

// MarshalText provides support for logging and any marshal needs.
func (o Op) MarshalText() ([]byte, error) {
	return []byte(o.value), nil
}

// HasBefore reports whether records of this operation carry a before image.
func (o Op) HasBefore() bool {
	return o != Insert
}

// HasAfter reports whether records of this operation carry an after image.
func (o Op) HasAfter() bool {
	return o != Delete
}

// Parse parses the string value and returns an operation if one exists.
func Parse(value string) (Op, error) {
	op, exists := ops[value]
	if !exists {
		return Op{}, fmt.Errorf("invalid audit operation %q", value)
	}

	return op, nil
}

// MustParse parses the string value and returns an operation if one exists.
// If an error occurs the function panics.
func MustParse(value string) Op {
	op, err := Parse(value)
	if err != nil {
		panic(err)
	}

	return op
}
