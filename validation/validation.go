// Package validation wraps go-playground/validator with field-tagged violations.
//
// Struct tags use the json name of each field, so a violation on
// Deal.Probability is reported as "probability".
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Violation is a single failed rule on a single field.
type Violation struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Violations are reported in struct field order.
type Violations []Violation

func (v Violations) Empty() bool { return len(v) == 0 }

// First returns the first violation, or the zero value when empty.
func (v Violations) First() Violation {
	if len(v) == 0 {
		return Violation{}
	}
	return v[0]
}

// Map flattens violations for JSON error details.
func (v Violations) Map() map[string]string {
	m := make(map[string]string, len(v))
	for _, vi := range v {
		if _, ok := m[vi.Field]; !ok {
			m[vi.Field] = vi.Rule
		}
	}
	return m
}

// Enum is implemented by closed-set string types.
type Enum interface {
	Valid() bool
}

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		// decimal.Decimal is validated as its float value so gte/lte/gt work.
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		_ = v.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
			e, ok := fl.Field().Interface().(Enum)
			return ok && e.Valid()
		})
		validate = v
	})
	return validate
}

// Struct runs the struct tags of s and returns every violation.
// Nested slices are validated when tagged with "dive".
func Struct(s any) Violations {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Violations{{Field: "", Rule: err.Error()}}
	}
	out := make(Violations, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, Violation{Field: fieldPath(fe), Rule: fe.Tag()})
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace:
// "Proposal.items[0].quantity" becomes "items[0].quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// Required records a violation when value is blank.
func Required(field, value string, v *Violations) {
	if strings.TrimSpace(value) == "" {
		*v = append(*v, Violation{Field: field, Rule: "required"})
	}
}

// NonNegative records a violation when d is below zero.
func NonNegative(field string, d decimal.Decimal, v *Violations) {
	if d.IsNegative() {
		*v = append(*v, Violation{Field: field, Rule: "gte"})
	}
}
