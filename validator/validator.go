// Package validator filters candidate records against a JSON Schema.
package validator

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/xeipuuv/gojsonschema"

	"github.com/aluiziolira/go-scrape-bikes/models"
)

// Validator checks candidate records against an externally supplied
// schema. A nil Validator, or one built without a schema, accepts
// everything.
type Validator struct {
	schema *gojsonschema.Schema
}

// New compiles a schema document. A nil or empty document yields an
// accept-all validator.
func New(schemaJSON []byte) (*Validator, error) {
	if len(schemaJSON) == 0 {
		return &Validator{}, nil
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// NewFromFile loads and compiles a schema file.
func NewFromFile(path string) (*Validator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return New(data)
}

// Accept reports whether a record satisfies the schema. Rejection is a
// filtering decision, never an error: violations are logged with the
// record's detail URL and the run continues.
func (v *Validator) Accept(bike *models.Bike) bool {
	if v == nil || v.schema == nil {
		return true
	}

	result, err := v.schema.Validate(gojsonschema.NewGoLoader(bike))
	if err != nil {
		slog.Warn("validation error",
			slog.String("detail_url", bike.DetailURL),
			slog.Any("error", err),
		)
		return false
	}
	if !result.Valid() {
		for _, desc := range result.Errors() {
			slog.Warn("validation failed",
				slog.String("detail_url", bike.DetailURL),
				slog.String("constraint", desc.String()),
			)
		}
		return false
	}
	return true
}
