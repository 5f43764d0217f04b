package handlers

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var roleCodeRe = regexp.MustCompile(`^ROLE_[A-Z_]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("rolecode", func(fl validator.FieldLevel) bool {
		return roleCodeRe.MatchString(fl.Field().String())
	})
	return v
}
