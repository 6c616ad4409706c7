// Package phone represents a customer phone number.
package phone

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// phoneRegEx allows for an optional +, followed by digits, spaces, or hyphens.
var phoneRegEx = regexp.MustCompile(`^\+?[0-9\s-]{3,20}$`)

// Null represents an optional phone number. The zero value is "no phone",
// which is also what an anonymized booking carries.
type Null struct {
	value string
	valid bool
}

// ParseNull parses the string value into a normalized phone number with
// separators removed. An empty string yields the empty value.
func ParseNull(value string) (Null, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Null{}, nil
	}

	if !phoneRegEx.MatchString(value) {
		return Null{}, fmt.Errorf("invalid phone %q", value)
	}

	normalized := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, value)

	return Null{value: normalized, valid: true}, nil
}

// MustParseNull parses the string value and returns a phone number. If an
// error occurs the function panics.
func MustParseNull(value string) Null {
	phone, err := ParseNull(value)
	if err != nil {
		panic(err)
	}

	return phone
}

// Valid reports whether a phone number is present.
func (n Null) Valid() bool {
	return n.valid
}

// String returns the value of the phone number or an empty string.
func (n Null) String() string {
	return n.value
}

// Equal provides support for the go-cmp package and testing.
func (n Null) Equal(n2 Null) bool {
	return n.value == n2.value && n.valid == n2.valid
}

// MarshalText provides support for logging and any marshal needs.
func (n Null) MarshalText() ([]byte, error) {
	return []byte(n.value), nil
}

// ToSQLNullString converts a Null value to a sql NullString.
func ToSQLNullString(n Null) sql.NullString {
	return sql.NullString{
		String: n.value,
		Valid:  n.valid,
	}
}

// FromSQLNullString converts a sql NullString into a Null value without
// validating the stored text.
func FromSQLNullString(ns sql.NullString) Null {
	if !ns.Valid || ns.String == "" {
		return Null{}
	}

	return Null{value: ns.String, valid: true}
}
