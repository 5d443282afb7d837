package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
)

type sampleBody struct {
	Name     string `json:"name" validate:"required,max=5"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"toolong","quantity":-1}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %#v", pkgerrors.As(err).Details())
	}
	if details["name"] != "must be at most 5" {
		t.Fatalf("unexpected name detail %q", details["name"])
	}
	if details["quantity"] != "must be greater than or equal to 0" {
		t.Fatalf("unexpected quantity detail %q", details["quantity"])
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"ok","extra":true}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  abcdef  ", 3); got != "abc" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
}

type pricedBody struct {
	Price   decimal.Decimal `json:"price" validate:"gte=0"`
	Options []struct {
		Name string `json:"optionName" validate:"required"`
	} `json:"options" validate:"dive"`
}

func TestDecodeJSONBodyValidatesDecimalsAndNestedPaths(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"price":"-1.50","options":[{"optionName":""}]}`))
	var body pricedBody
	err := DecodeJSONBody(req, &body)
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %v", err)
	}
	if details["price"] != "must be greater than or equal to 0" {
		t.Fatalf("unexpected price detail %q", details["price"])
	}
	if details["options[0].optionName"] != "is required" {
		t.Fatalf("unexpected nested detail %v", details)
	}
}

func TestDecodeJSONBodyRejectsTrailingDocuments(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"ok"}{"name":"again"}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyEnforcesSizeLimit(t *testing.T) {
	huge := `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(huge))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Message() != "request body too large" {
		t.Fatalf("expected size limit error, got %v", err)
	}
}

func TestSanitizeStringKeepsRunesWhole(t *testing.T) {
	if got := SanitizeString("héllo", 2); got != "h" {
		t.Fatalf("expected cut before multi-byte rune, got %q", got)
	}
}
