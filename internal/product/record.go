package product

import (
	"strconv"
	"strings"
	"time"
)

// Record is a product row from the relational store.
type Record struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Category  *string   `json:"category"`
	InStock   bool      `json:"inStock"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewRecord holds the values inserted for a new row.
type NewRecord struct {
	Name     string
	Price    float64
	Category *string
	InStock  bool
}

// RecordInput is a decoded relational payload. Unlike DocumentInput it
// keeps track of which keys were sent, so it doubles as a sparse patch.
type RecordInput struct {
	Name     Field[string]
	Price    Field[float64]
	Category Field[string]
	InStock  Field[bool]
}

// DecodeRecordInput parses a JSON body. Wrongly typed fields are reported
// as a *ValidationError; malformed JSON is returned unchanged.
func DecodeRecordInput(data []byte) (RecordInput, error) {
	f, castErrs, err := decodeProductFields(data)
	if err != nil {
		return RecordInput{}, err
	}
	if len(castErrs) > 0 {
		var msgs []string
		for _, key := range []string{"name", "price", "category", "inStock"} {
			if msg, ok := castErrs[key]; ok {
				msgs = append(msgs, msg)
			}
		}
		return RecordInput{}, &ValidationError{Messages: msgs}
	}
	return RecordInput(f), nil
}

// ToNew checks presence of name and price and applies defaults: an empty
// or missing category becomes NULL and a missing inStock becomes true.
// Price is not range checked.
func (in RecordInput) ToNew() (NewRecord, error) {
	if !in.Name.present() || *in.Name.Value == "" || !in.Price.present() {
		return NewRecord{}, &ValidationError{Messages: []string{"Name and price are required fields"}}
	}

	rec := NewRecord{
		Name:    *in.Name.Value,
		Price:   *in.Price.Value,
		InStock: true,
	}
	if in.Category.present() && *in.Category.Value != "" {
		c := *in.Category.Value
		rec.Category = &c
	}
	if in.InStock.present() {
		rec.InStock = *in.InStock.Value
	}
	return rec, nil
}

// ParseRecordID parses a relational identifier from a path segment.
func ParseRecordID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, ErrInvalidID
	}
	return id, nil
}

func boolToSmallint(b bool) int16 {
	if b {
		return 1
	}
	return 0
}
