package main

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/cuota/core"
)

// describe flattens validation errors into one "field: message" line per field.
func describe(err error, translator ut.Translator) string {
	var lines []string

	var verrs validator.ValidationErrors
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verrs):
		for _, fe := range verrs {
			lines = append(lines, fe.Field()+": "+fe.Translate(translator))
		}
	case errors.As(err, &verr) && len(verr.Fields) > 0:
		for _, fe := range verr.Fields {
			lines = append(lines, fe.Field+": "+fe.Error)
		}
	default:
		return err.Error()
	}
	return strings.Join(lines, "\n")
}
