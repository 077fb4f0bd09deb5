package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/socialfeed/socialfeed-auth/internal/http/response"
)

const msgValidationFailed = "Validation failed."

var usernameRE = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// RegisterValidations installs custom validators and makes validation errors
// report JSON field names. Call once at startup before serving requests.
func RegisterValidations() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRE.MatchString(fl.Field().String())
	})
}

// respondValidationError answers 422 with a per-field error list when the
// request body fails binding.
func respondValidationError(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		errs := make([]response.FieldError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			errs = append(errs, response.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		response.Error(c, http.StatusUnprocessableEntity, msgValidationFailed, errs)
		return
	}
	response.Error(c, http.StatusUnprocessableEntity, msgValidationFailed, nil)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "username":
		return "Username can only contain letters, numbers and underscores"
	default:
		return "Invalid value"
	}
}
