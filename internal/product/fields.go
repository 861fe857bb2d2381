package product

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field records whether a JSON key was sent and, if so, its value.
// A key sent as null has Set true and a nil Value.
type Field[T any] struct {
	Set   bool
	Value *T
}

func (f Field[T]) present() bool { return f.Set && f.Value != nil }

// rawFields keeps a request body as undecoded members so that presence,
// null and type mismatches can be told apart per field.
type rawFields map[string]json.RawMessage

func decodeFields(data []byte) (rawFields, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return rawFields{}, nil
	}
	var m rawFields
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = rawFields{}
	}
	return m, nil
}

func decodeField[T any](f rawFields, key, kind string) (Field[T], error) {
	raw, ok := f[key]
	if !ok {
		return Field[T]{}, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Field[T]{Set: true}, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return Field[T]{Set: true}, fmt.Errorf("%s must be a %s", key, kind)
	}
	return Field[T]{Set: true, Value: &v}, nil
}

// productFields is the business payload shared by both stores.
type productFields struct {
	Name     Field[string]
	Price    Field[float64]
	Category Field[string]
	InStock  Field[bool]
}

// decodeProductFields returns the decoded fields plus, keyed by JSON name,
// a message for each field whose JSON type is wrong. A syntax error is
// returned as err.
func decodeProductFields(data []byte) (productFields, map[string]string, error) {
	raw, err := decodeFields(data)
	if err != nil {
		return productFields{}, nil, err
	}

	var out productFields
	castErrs := map[string]string{}
	if out.Name, err = decodeField[string](raw, "name", "string"); err != nil {
		castErrs["name"] = err.Error()
	}
	if out.Price, err = decodeField[float64](raw, "price", "number"); err != nil {
		castErrs["price"] = err.Error()
	}
	if out.Category, err = decodeField[string](raw, "category", "string"); err != nil {
		castErrs["category"] = err.Error()
	}
	if out.InStock, err = decodeField[bool](raw, "inStock", "boolean"); err != nil {
		castErrs["inStock"] = err.Error()
	}
	return out, castErrs, nil
}
