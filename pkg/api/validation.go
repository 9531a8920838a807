package api

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/platinummonkey/subledger/pkg/httputil"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON or query name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// normalizer is implemented by requests that clean their input before validation
type normalizer interface {
	normalize()
}

// decodeAndValidate parses the JSON body into dest and validates it.
// On failure the error response is already written.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if !httputil.ParseJSONOrError(w, r, dest) {
		return false
	}
	return validateOrError(w, r, dest)
}

func validateOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if n, ok := dest.(normalizer); ok {
		n.normalize()
	}

	err := validate.Struct(dest)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		httputil.WriteDetailedError(w, http.StatusBadRequest, "validation failed", fieldErrors(verrs))
		return false
	}
	httputil.WriteError(w, r, errors.Wrap(err, "failed to validate request"))
	return false
}

func fieldErrors(verrs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = describe(fe)
	}
	return details
}

func describe(fe validator.FieldError) string {
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s%s", fe.Param(), unit)
	case "max":
		return fmt.Sprintf("must be at most %s%s", fe.Param(), unit)
	case "uuid":
		return "must be a UUID"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
