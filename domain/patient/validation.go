package patient

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	apperrors "rhealth-backend/pkg/errors"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Use JSON tag names in error messages
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateFields checks an add mutation. Blank strings count as missing.
func ValidateFields(f Fields) error {
	f.Name = strings.TrimSpace(f.Name)
	f.Gender = strings.TrimSpace(f.Gender)

	if err := getValidator().Struct(f); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidatePatch checks the supplied members of an update mutation against the
// same rules as ValidateFields.
func ValidatePatch(p Patch) error {
	if p.IsEmpty() {
		return apperrors.NewValidation("update contains no fields")
	}

	v := getValidator()
	checks := []struct {
		field string
		value interface{}
		tag   string
		set   bool
	}{
		{"name", trimmed(p.Name), "required,max=255", p.Name != nil},
		{"age", deref(p.Age), "gte=0,lte=150", p.Age != nil},
		{"gender", trimmed(p.Gender), "required,max=32", p.Gender != nil},
		{"heartRate", floatOrZero(p.HeartRate), "gte=0,lte=400", p.HeartRate.Value != nil},
		{"oxygenSaturation", floatOrZero(p.OxygenSaturation), "gte=0,lte=100", p.OxygenSaturation.Value != nil},
		{"temperature", floatOrZero(p.Temperature), "gte=0,lte=120", p.Temperature.Value != nil},
	}

	for _, c := range checks {
		if !c.set {
			continue
		}
		if err := v.Var(c.value, c.tag); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				return apperrors.NewValidation(message(c.field, verrs[0].Tag(), verrs[0].Param()))
			}
			return apperrors.NewValidation(fmt.Sprintf("%s is invalid", c.field))
		}
	}
	return nil
}

// formatValidationError converts validator errors to a single validation error
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.NewValidation(err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, message(e.Field(), e.Tag(), e.Param()))
	}
	return apperrors.NewValidation(strings.Join(msgs, "; "))
}

func message(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func floatOrZero(o OptionalFloat) float64 {
	if o.Value == nil {
		return 0
	}
	return *o.Value
}

func deref(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
