package httpx

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"bibliobridge/internal/entity"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("isbn", validateISBN)
	return v
}

// validateISBN accepts ISBN-10 and ISBN-13 in any punctuation.
func validateISBN(fl validator.FieldLevel) bool {
	isbn := strings.ToUpper(entity.NormalizeISBN(fl.Field().String()))
	switch len(isbn) {
	case 10:
		for i := 0; i < 9; i++ {
			if isbn[i] < '0' || isbn[i] > '9' {
				return false
			}
		}
		return (isbn[9] >= '0' && isbn[9] <= '9') || isbn[9] == 'X'
	case 13:
		for i := 0; i < 13; i++ {
			if isbn[i] < '0' || isbn[i] > '9' {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ValidateStruct returns one detail per failed rule, keyed by JSON field
// name, or nil when s is valid.
func ValidateStruct(s any) []ErrorDetail {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ErrorDetail{{Field: "", Message: err.Error()}}
	}

	details := make([]ErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		var message string
		switch fe.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s", field, fe.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", field, fe.Param())
		case "gte", "lte":
			message = fmt.Sprintf("%s is out of range", field)
		case "isbn":
			message = fmt.Sprintf("%s must be a valid ISBN (10 or 13 digits)", field)
		default:
			message = fmt.Sprintf("%s is invalid", field)
		}
		path := fe.Namespace()
		if _, rest, ok := strings.Cut(path, "."); ok {
			path = rest
		}
		details = append(details, ErrorDetail{Field: path, Message: message})
	}
	return details
}
