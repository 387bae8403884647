package lineitem

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	ierr "github.com/bengkel-pos/api/internal/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Violation messages.
const (
	MsgDescriptionRequired = "description required"
	MsgSparePartRequired   = "spare part required"
	MsgLaborTypeRequired   = "labor type required"
	MsgPartOrLaborRequired = "spare part or labor type required"
	MsgQuantityMin         = "quantity must be at least 1"
	MsgQuantityMax         = "quantity must be at most 2147483647"
	MsgUnitPriceDecimals   = "unit price has more than two decimals"
	MsgLaborCostDecimals   = "labor cost has more than two decimals"
)

// schemaMessages maps declarative schema failures (validate tags on LineItem) to messages.
var schemaMessages = map[string]string{
	"UnitPrice": "unit price must not be negative",
	"LaborCost": "labor cost must not be negative",
	"Total":     "total must not be negative",
}

// RequirementPolicy decides which catalog selections a row must carry.
type RequirementPolicy string

const (
	// RequireBoth demands a spare part and a labor type on every row.
	RequireBoth RequirementPolicy = "both"
	// RequireEither accepts parts-only and labor-only rows.
	RequireEither RequirementPolicy = "either"
)

// ParseRequirementPolicy parses "both" or "either".
func ParseRequirementPolicy(s string) (RequirementPolicy, error) {
	switch p := RequirementPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case RequireBoth, RequireEither:
		return p, nil
	}
	return "", fmt.Errorf("unknown requirement policy %q", s)
}

// Validator checks single rows. Safe for concurrent use.
type Validator struct {
	policy   RequirementPolicy
	validate *validator.Validate
}

// NewValidator creates a Validator enforcing policy.
func NewValidator(policy RequirementPolicy) *Validator {
	v := validator.New()
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	return &Validator{policy: policy, validate: v}
}

var defaultValidator = NewValidator(RequireBoth)

// ValidateRow validates item under the RequireBoth policy.
func ValidateRow(item LineItem) []string {
	return defaultValidator.ValidateRow(item)
}

// Policy returns the policy the validator enforces.
func (v *Validator) Policy() RequirementPolicy {
	return v.policy
}

// ValidateRow returns the violations of item, or nil when it is valid.
func (v *Validator) ValidateRow(item LineItem) []string {
	var out []string

	if blank(item.Description) {
		out = append(out, MsgDescriptionRequired)
	}

	noPart, noLabor := blank(item.SparePartRef), blank(item.LaborTypeRef)
	switch v.policy {
	case RequireEither:
		if noPart && noLabor {
			out = append(out, MsgPartOrLaborRequired)
		}
	default:
		if noPart {
			out = append(out, MsgSparePartRequired)
		}
		if noLabor {
			out = append(out, MsgLaborTypeRequired)
		}
	}

	if item.Quantity < 1 {
		out = append(out, MsgQuantityMin)
	} else if item.Quantity > math.MaxInt32 {
		out = append(out, MsgQuantityMax)
	}

	if !wholeCents(item.UnitPrice) {
		out = append(out, MsgUnitPriceDecimals)
	}
	if !wholeCents(item.LaborCost) {
		out = append(out, MsgLaborCostDecimals)
	}

	if err := v.validate.Struct(item); err != nil {
		var fieldErrs validator.ValidationErrors
		if ierr.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				if msg, ok := schemaMessages[fe.StructField()]; ok {
					out = append(out, msg)
				} else {
					out = append(out, fe.Error())
				}
			}
		} else {
			out = append(out, err.Error())
		}
	}

	return out
}

func wholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// decimalValue exposes decimals to validator tags as float64. Only the sign is
// checked, so the float conversion is exact enough.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}
