package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a validator that reports fields by their JSON names.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// required on a Value checks presence only; "" and 0 pass.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(Value); ok {
			return val.Present()
		}
		return nil
	}, Value{})

	v.RegisterStructValidation(func(sl validatorv10.StructLevel) {
		req := sl.Current().Interface().(UpdateStatusRequest)
		if !req.Status.Truthy() {
			sl.ReportError(req.Status.String(), "status", "Status", "required", "")
		}
	}, UpdateStatusRequest{})

	return v
}

// MissingFields returns the JSON names of fields that failed the required rule.
func MissingFields(err error) []string {
	ve, ok := err.(validatorv10.ValidationErrors)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Tag() == "required" {
			out = append(out, fe.Field())
		}
	}
	return out
}
