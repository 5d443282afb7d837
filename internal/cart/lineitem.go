package cart

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
)

// LineItem is one cart row as stored in the envelope and exchanged with
// clients. Money fields are recomputed from the catalog on every pass.
type LineItem struct {
	SKUID          uuid.UUID       `json:"skuId" validate:"required"`
	ProductID      uuid.UUID       `json:"productId" validate:"required"`
	OrganisationID uuid.UUID       `json:"organisationId"`
	Quantity       int             `json:"quantity"`
	Amount         decimal.Decimal `json:"amount"`
	Tax            decimal.Decimal `json:"tax"`
	TotalAmt       decimal.Decimal `json:"totalAmt"`
	Name           string          `json:"name" validate:"max=255"`
	Image          *string         `json:"image,omitempty" validate:"omitempty,max=2048"`
	VariantLabels  []string        `json:"variantLabels,omitempty" validate:"omitempty,dive,max=255"`
}

// Totals is the cart summary block. TargetValue is the most the buyer agreed
// to pay; zero means no limit was submitted.
type Totals struct {
	SubTotal    decimal.Decimal `json:"subTotal"`
	GST         decimal.Decimal `json:"gst"`
	Total       decimal.Decimal `json:"total"`
	TargetValue decimal.Decimal `json:"targetValue"`
}

// Envelope is the serialized form of carts.cart_products.
type Envelope struct {
	Items []LineItem `json:"cartProductsArray" validate:"dive"`
	Total Totals     `json:"total"`
}

var schema = newSchema()

func newSchema() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks the envelope against the line item schema.
func (e *Envelope) Validate() error {
	if err := schema.Struct(e); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart line items")
	}
	return nil
}

// DecodeEnvelope parses a stored envelope. A blank payload is an empty cart.
func DecodeEnvelope(raw string) (*Envelope, error) {
	env := &Envelope{Items: []LineItem{}}
	if strings.TrimSpace(raw) == "" {
		return env, nil
	}
	if err := json.Unmarshal([]byte(raw), env); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode cart envelope")
	}
	if env.Items == nil {
		env.Items = []LineItem{}
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}

// EncodeEnvelope validates and serializes an envelope for storage.
func EncodeEnvelope(env *Envelope) (string, error) {
	if env == nil {
		env = &Envelope{}
	}
	if env.Items == nil {
		env.Items = []LineItem{}
	}
	if err := env.Validate(); err != nil {
		return "", err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart envelope")
	}
	return string(raw), nil
}
