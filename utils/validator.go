package utils

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"mailwarm/warmup"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Same pattern the settings forms enforce client side.
	_ = v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		return warmup.ValidEmail(fl.Field().String())
	})
	_ = v.RegisterValidation("ramp", func(fl validator.FieldLevel) bool {
		return warmup.RampType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("utcoffset", func(fl validator.FieldLevel) bool {
		_, err := warmup.ParseOffset(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("weekdays", func(fl validator.FieldLevel) bool {
		days, ok := fl.Field().Interface().([]int)
		if !ok || len(days) == 0 {
			return false
		}
		for _, d := range days {
			if d < 0 || d > 6 {
				return false
			}
		}
		return true
	})
	return v
}

func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	// Format validation errors
	var msgs []string
	for _, err := range verrs {
		field := strings.ToLower(err.Field())
		param := err.Param()

		switch err.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, field+" must be at least "+param)
		case "max":
			msgs = append(msgs, field+" must be at most "+param)
		case "gtfield":
			msgs = append(msgs, field+" must be greater than "+strings.ToLower(param))
		case "email", "mailbox":
			msgs = append(msgs, field+" must be a valid email")
		case "ramp":
			msgs = append(msgs, field+" must be linear, exponential or logarithmic")
		case "utcoffset":
			msgs = append(msgs, field+" must look like UTC+HH:MM")
		case "weekdays":
			msgs = append(msgs, field+" must list at least one day between 0 and 6")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}

	return errors.New(strings.Join(msgs, ", "))
}
