package handlers

import (
	"cloud.google.com/go/civil"
	"github.com/adoptly/adoptly/services/interview-service/internal/civiltime"
	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("civildate", func(fl validator.FieldLevel) bool {
		_, err := civil.ParseDate(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := civiltime.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	return v
}

// firstInvalidField names the first failing field for the error body.
func firstInvalidField(err error) string {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		return errs[0].Field()
	}
	return ""
}
