// Package validation checks form input with go-playground/validator and turns
// failures into field-keyed validation errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	svcerrors "github.com/R3E-Network/menu_layer/internal/errors"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
			if d, ok := v.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
	})
	return validate
}

// Messages maps "field.tag" to the user-facing message.
var Messages = map[string]string{
	"name.required":        "Name is required",
	"name.min":             "Name must be at least 2 characters",
	"description.min":      "Description must be at least 10 characters",
	"description.required": "Description must be at least 10 characters",
	"price.gt":             "Price must be a positive number",
	"price.required":       "Price must be a positive number",
	"category_id.required": "Category is required",
	"image_url.url":        "Must be a valid URL",
	"email.required":       "Please enter a valid email",
	"email.email":          "Please enter a valid email",
	"password.required":    "Password must be at least 6 characters",
	"password.min":         "Password must be at least 6 characters",
}

// Struct validates v. It returns nil or a *errors.ServiceError with code
// VALIDATION_ERROR whose details map each failing field to a message.
func Struct(v interface{}) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return svcerrors.Validation(err.Error())
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := fields[field]; seen {
			continue
		}
		fields[field] = message(field, fe)
	}
	return svcerrors.ValidationFields(fields)
}

func message(field string, fe validator.FieldError) string {
	if msg, ok := Messages[field+"."+fe.Tag()]; ok {
		return msg
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
