package serverutils

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("password", validatePassword)
	})
	return validate
}

// ValidateRequest returns validator.ValidationErrors for an invalid struct.
func ValidateRequest(req interface{}) error {
	return Validator().Struct(req)
}

// password requires at least one letter and one digit.
func validatePassword(fl validator.FieldLevel) bool {
	var letter, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

var fieldMessages = map[string]string{
	"required": "To pole jest wymagane.",
	"email":    "Podaj poprawny adres email.",
	"min":      "Wartość jest za krótka.",
	"max":      "Wartość jest za długa.",
	"password": "Hasło musi zawierać co najmniej jedną literę i jedną cyfrę.",
	"eqfield":  "Hasła nie są identyczne.",
	"nefield":  "Nowe hasło musi różnić się od obecnego.",
	"eq":       "Wpisz dokładnie wymagany tekst.",
	"oneof":    "Niedozwolona wartość.",
}

// FieldErrors maps json field names to user-facing messages.
func FieldErrors(errs validator.ValidationErrors) map[string]interface{} {
	out := make(map[string]interface{}, len(errs))
	for _, fe := range errs {
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = "Nieprawidłowa wartość."
		}
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = msg
		}
	}
	return out
}
