package product

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalidID = errors.New("invalid id")
)

// ValidationError carries one message per rejected field, in field order.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// Filter narrows a list query. Zero values mean "no filter".
type Filter struct {
	Category string
	InStock  *bool
}

// ParseInStock turns the raw inStock query value into a filter value.
// Only "true" and "false" are accepted, case-insensitively.
func ParseInStock(raw string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true":
		v := true
		return &v, nil
	case "false":
		v := false
		return &v, nil
	default:
		return nil, fmt.Errorf("invalid inStock filter %q: expected true or false", raw)
	}
}
