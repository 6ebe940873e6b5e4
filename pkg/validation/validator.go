package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/cluso-gridtopo/pkg/network"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	columnPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

func init() {
	validate = validator.New()
	// registration only fails for empty tags or nil functions
	_ = validate.RegisterValidation("elementtype", func(fl validator.FieldLevel) bool {
		return isRegistered(network.ElementType(fl.Field().String()))
	})
	_ = validate.RegisterValidation("column", func(fl validator.FieldLevel) bool {
		return columnPattern.MatchString(fl.Field().String())
	})
}

func isRegistered(et network.ElementType) bool {
	for _, t := range network.Types() {
		if t == et {
			return true
		}
	}
	return false
}

// Struct validates the struct tags of v. A nil pointer is rejected.
func Struct(v any) error {
	if v == nil {
		return errors.New("options cannot be nil")
	}
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateElementType checks that et names a registered element type.
func ValidateElementType(et network.ElementType) error {
	if et == "" {
		return errors.New("element type cannot be empty")
	}
	if !isRegistered(et) {
		return fmt.Errorf("element type %q is not registered", et)
	}
	return nil
}

// ValidateIndices checks that every index is non-negative.
func ValidateIndices(field string, indices []int) error {
	for i, idx := range indices {
		if idx < 0 {
			return fmt.Errorf("%s: index at position %d is negative (%d)", field, i, idx)
		}
	}
	return nil
}

// ValidateColumnName checks that a column name is a lower-case identifier.
func ValidateColumnName(col string) error {
	if !columnPattern.MatchString(col) {
		return fmt.Errorf("column name %q is invalid (lower-case letters, digits and underscore)", col)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("options must be a struct: %w", err)
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	for _, e := range validationErrs {
		field := e.Namespace()
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max", "lte":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, param)
		case "elementtype":
			return fmt.Errorf("%s: %q is not a registered element type", field, e.Value())
		case "column":
			return fmt.Errorf("%s: %q is not a valid column name", field, e.Value())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}
