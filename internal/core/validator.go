package core

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"cloudnotes/internal/types"
)

// Validator wraps go-playground/validator and reports failures as
// validation AppErrors keyed by JSON field name.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator that names fields by their json tag.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// ValidateStruct validates s. Missing required fields produce
// validation_missing_required_field; any other rule produces
// validation_invalid_input. Details map each failing field to its rule.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeValidationInvalidInput, "invalid request", err)
	}

	code := types.ErrCodeValidationMissingField
	fields := make(map[string]any, len(verrs))
	var names []string
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
		names = append(names, fe.Field())
		if fe.Tag() != "required" {
			code = types.ErrCodeValidationInvalidInput
		}
	}

	msg := "invalid fields: " + strings.Join(names, ", ")
	if code == types.ErrCodeValidationMissingField {
		msg = "missing required fields: " + strings.Join(names, ", ")
	}
	return types.NewAppErrorWithDetails(code, msg, err, map[string]any{"fields": fields})
}
