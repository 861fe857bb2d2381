package product

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is a product as held by the document store.
type Document struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Price     float64            `json:"price" bson:"price"`
	Category  *string            `json:"category" bson:"category"`
	InStock   bool               `json:"inStock" bson:"inStock"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// DocumentFields are the business fields written on create and on a full
// replace.
type DocumentFields struct {
	Name     string
	Price    float64
	Category *string
	InStock  bool
}

// DocumentInput is a decoded create or replace payload, not yet validated.
type DocumentInput struct {
	fields   productFields
	castErrs map[string]string
}

// DecodeDocumentInput parses a JSON body. Only malformed JSON is reported
// here; wrongly typed fields surface from Validate.
func DecodeDocumentInput(data []byte) (DocumentInput, error) {
	f, castErrs, err := decodeProductFields(data)
	if err != nil {
		return DocumentInput{}, err
	}
	return DocumentInput{fields: f, castErrs: castErrs}, nil
}

// Validate trims strings, applies defaults and checks the schema rules.
// All violations are reported together in a *ValidationError.
func (in DocumentInput) Validate() (DocumentFields, error) {
	var (
		out  DocumentFields
		msgs []string
	)

	if msg, ok := in.castErrs["name"]; ok {
		msgs = append(msgs, msg)
	} else {
		if in.fields.Name.present() {
			out.Name = strings.TrimSpace(*in.fields.Name.Value)
		}
		if out.Name == "" {
			msgs = append(msgs, "Product name is required")
		}
	}

	if msg, ok := in.castErrs["price"]; ok {
		msgs = append(msgs, msg)
	} else if !in.fields.Price.present() {
		msgs = append(msgs, "Product price is required")
	} else {
		out.Price = *in.fields.Price.Value
		if out.Price < 0 {
			msgs = append(msgs, "Price cannot be negative")
		}
	}

	if msg, ok := in.castErrs["category"]; ok {
		msgs = append(msgs, msg)
	} else if in.fields.Category.present() {
		c := strings.TrimSpace(*in.fields.Category.Value)
		out.Category = &c
	}

	out.InStock = true
	if msg, ok := in.castErrs["inStock"]; ok {
		msgs = append(msgs, msg)
	} else if in.fields.InStock.present() {
		out.InStock = *in.fields.InStock.Value
	}

	if len(msgs) > 0 {
		return DocumentFields{}, &ValidationError{Messages: msgs}
	}
	return out, nil
}
