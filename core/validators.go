package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// customTag is a validation tag registered on top of the validator's builtin ones.
type customTag struct {
	tag  string
	text string
	fn   validator.Func // nil for builtin tags whose message is overridden
}

var (
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)
	postalCodeRegex    = regexp.MustCompile(`^\d{5}$`)

	requiredText   = "this field is required"
	postalCodeText = "postal code must contain exactly 5 digits"

	globalTags = []customTag{
		{tag: "alphanum_", text: "only alphanumeric characters and underscores are allowed", fn: matching(alphaNumUnderRegex)},
		{tag: "postalcode", text: postalCodeText, fn: matching(postalCodeRegex)},
		{tag: "required", text: requiredText},
		{tag: "required_with", text: requiredText},
	}
)

// NewTranslator returns the english translator used for validation messages.
func NewTranslator() ut.Translator {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	return translator
}

// InitValidators registers the default english messages, the JSON field names and the global custom tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	for _, ct := range globalTags {
		if ct.fn != nil {
			_ = validate.RegisterValidation(ct.tag, ct.fn)
		}
		RegisterCustomTranslation(validate, translator, ct.tag, ct.text, ct.fn == nil)
	}
}

// RegisterCustomTranslation registers the message of a validation tag; `override` replaces an existing one.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	ovrd := len(override) > 0 && override[0]
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

func matching(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}
