package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = "only alphanumeric characters and underscores are allowed"
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"

	gtTag   = "gt"
	gtText  = "must be greater than {0}"
	gteTag  = "gte"
	gteText = "must be greater than or equal to {0}"

	currencyTag  = "currency"
	currencyText = "must have at most 2 decimal places"
)

// NewTranslator returns the English translator used for validation messages.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) error {
	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		return errors.Wrap(err, "registering default translations")
	}

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// amounts are validated as numbers: `validate:"required,gt=0"`
	validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{}, decimal.NullDecimal{})

	// register custom validators
	if err := validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation); err != nil {
		return errors.Wrap(err, alphaNumUnderTag)
	}
	if err := validate.RegisterValidation(currencyTag, currencyValidation); err != nil {
		return errors.Wrap(err, currencyTag)
	}

	translations := []error{
		RegisterCustomTranslation(validate, translator, alphaNumUnderTag, alphaNumUnderText),
		RegisterCustomTranslation(validate, translator, currencyTag, currencyText),
		RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true),
		RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true),
		registerParamTranslation(validate, translator, gtTag, gtText),
		registerParamTranslation(validate, translator, gteTag, gteText),
	}
	for _, err := range translations {
		if err != nil {
			return err
		}
	}
	return nil
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) error {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	err := validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
	return errors.Wrapf(err, "registering %q translation", tag)
}

// registerParamTranslation overrides the translation of a tag that takes a param (eg. gt=0).
func registerParamTranslation(validate *validator.Validate, translator ut.Translator, tag, text string) error {
	err := validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Param())
			return s
		},
	)
	return errors.Wrapf(err, "registering %q translation", tag)
}

func decimalValue(field reflect.Value) interface{} {
	switch d := field.Interface().(type) {
	case decimal.Decimal:
		f, _ := d.Float64()
		return f
	case decimal.NullDecimal:
		if !d.Valid {
			return nil
		}
		f, _ := d.Decimal.Float64()
		return f
	}
	return nil
}

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

// currencyValidation only allows amounts with at most 2 decimal places.
// Decimal fields reach it as float64 through decimalValue.
func currencyValidation(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.Float32, reflect.Float64:
		return decimal.NewFromFloat(field.Float()).Exponent() >= -2
	case reflect.String:
		d, err := decimal.NewFromString(field.String())
		return err == nil && d.Exponent() >= -2
	}
	return false
}
