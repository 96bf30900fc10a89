// Package request decodes and validates JSON request bodies.
package request

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"

	apperrors "github.com/hireready/backend/internal/errors"
)

// MaxBodyBytes bounds every decoded request body.
const MaxBodyBytes = 1 << 20

// Decode reads r's JSON body into dst. An empty body leaves dst untouched.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.BadRequest("request body too large")
		}
		return apperrors.BadRequest("invalid request body")
	}
	return nil
}

// Validate runs v's ozzo rules and converts failures into a field-level
// validation error.
func Validate(v validation.Validatable) error {
	if err := v.Validate(); err != nil {
		return FromValidation(err)
	}
	return nil
}

// DecodeAndValidate combines Decode and Validate.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst validation.Validatable) error {
	if err := Decode(w, r, dst); err != nil {
		return err
	}
	return Validate(dst)
}

// FromValidation maps ozzo validation errors to an AppError.
func FromValidation(err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for field, ferr := range verrs {
			fields[field] = ferr.Error()
		}
		return apperrors.FieldErrors(fields)
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return apperrors.InternalError("validation failed").WithCause(err)
	}
	return apperrors.ValidationError(err.Error())
}
