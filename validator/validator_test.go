package validator

import (
	"testing"

	"github.com/aluiziolira/go-scrape-bikes/models"
)

const testSchema = `{
	"type": "object",
	"required": ["name", "price", "availability"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"price": {"type": "number"},
		"availability": {"type": "string"}
	}
}`

func price(v float64) *float64 {
	return &v
}

func TestNilValidatorAcceptsEverything(t *testing.T) {
	var v *Validator
	if !v.Accept(&models.Bike{}) {
		t.Fatalf("nil validator must accept every record")
	}
}

func TestEmptySchemaAcceptsEverything(t *testing.T) {
	v, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !v.Accept(&models.Bike{Name: ""}) {
		t.Fatalf("validator without schema must accept every record")
	}
}

func TestSchemaAcceptsCompleteRecord(t *testing.T) {
	v, err := New([]byte(testSchema))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	bike := &models.Bike{
		Name:         "Bike A",
		Price:        price(1000),
		Availability: "InStock",
		DetailURL:    "https://example.test/bikes/a",
	}
	if !v.Accept(bike) {
		t.Fatalf("complete record should be accepted")
	}
}

func TestSchemaRejectsMissingPrice(t *testing.T) {
	v, err := New([]byte(testSchema))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	bike := &models.Bike{
		Name:         "Bike B",
		Price:        nil,
		Availability: "InStock",
		DetailURL:    "https://example.test/bikes/b",
	}
	if v.Accept(bike) {
		t.Fatalf("record with null price should be rejected")
	}
}

func TestBrokenSchemaFailsAtCompileTime(t *testing.T) {
	if _, err := New([]byte(`{"type": 42}`)); err == nil {
		t.Fatalf("invalid schema should fail to compile")
	}
}
