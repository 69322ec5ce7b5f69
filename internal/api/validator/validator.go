package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
)

// ValidationErrors wraps the validator's ValidationErrors
type ValidationErrors []playgroundvalidator.FieldError

// CustomValidator wraps go-playground/validator
type CustomValidator struct {
	validator *playgroundvalidator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() echo.Validator {
	v := playgroundvalidator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Register custom validations
	err := v.RegisterValidation("resource_type", validateResourceType)
	if err != nil {
		return nil
	}
	err = v.RegisterValidation("permission_level", validatePermissionLevel)
	if err != nil {
		return nil
	}
	err = v.RegisterValidation("request_status", validateRequestStatus)
	if err != nil {
		return nil
	}

	return &CustomValidator{validator: v}
}

// Custom validation functions
func validateResourceType(fl playgroundvalidator.FieldLevel) bool {
	return models.IsValidResourceType(fl.Field().String())
}

func validatePermissionLevel(fl playgroundvalidator.FieldLevel) bool {
	return models.IsValidPermission(fl.Field().String())
}

func validateRequestStatus(fl playgroundvalidator.FieldLevel) bool {
	status := fl.Field().String()
	return status == string(models.RequestStatusApproved) || status == string(models.RequestStatusDenied)
}

// Validate implements echo.Validator interface
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		var validationErrors playgroundvalidator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return ValidationErrors(validationErrors)
		}
		return err
	}
	return nil
}

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var fields []string
	for _, err := range ve {
		fields = append(fields, err.Field())
	}
	return fmt.Sprintf("validation failed on fields: %s", strings.Join(fields, ", "))
}
