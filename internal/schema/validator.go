// Package schema decodes and validates API request bodies.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"ai-care-assistant-service/internal/apperr"
)

// fieldMessages holds the client-facing message for a failing field, keyed
// by "<Type>.<jsonField>".
var fieldMessages = map[string]string{
	"ChatRequest.message":         "Message and sessionId are required",
	"ChatRequest.sessionId":       "Message and sessionId are required",
	"SynthesizeRequest.text":      "Text is required and must be a string",
	"SynthesizeRequest.sessionId": "Session ID is required",
	"TranscribeRequest.sessionId": "Session ID is required",
	"TranscribeRequest.audio":     "Audio file is required",
	"TranscriptSegment.segmentId": "segmentId is required",
}

// Validator wraps go-playground/validator and turns its failures into
// *apperr.ValidationError values with stable messages.
type Validator struct {
	v *validator.Validate
}

// New creates a validator that reports fields by their JSON names.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Validate checks s against its validate tags.
func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("", "Invalid request")
	}

	fe := verrs[0]
	return apperr.Validation(fe.Field(), message(fe.Namespace(), fe.Field(), fe.Tag()))
}

// Decode reads a JSON body into dst and validates it. A field holding the
// wrong JSON type fails with the same message as a missing one.
func (v *Validator) Decode(r io.Reader, dst any) error {
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			key := typeName(dst) + "." + typeErr.Field
			if msg, ok := fieldMessages[key]; ok {
				return apperr.Validation(typeErr.Field, msg)
			}
			return apperr.Validation(typeErr.Field, fmt.Sprintf("%s has the wrong type", typeErr.Field))
		}
		return apperr.Validation("", "Invalid JSON body")
	}
	return v.Validate(dst)
}

func message(ns, field, tag string) string {
	// ns is "<Type>.<jsonField>" for top-level fields.
	if msg, ok := fieldMessages[ns]; ok {
		return msg
	}
	if tag == "required" {
		return field + " is required"
	}
	return fmt.Sprintf("%s is invalid", field)
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}
