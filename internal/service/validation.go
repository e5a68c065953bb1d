package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rivo/uniseg"

	"github.com/pingpanda/pingpanda/internal/model"
)

var (
	categoryNameRegex = regexp.MustCompile(`^[a-z0-9-]+$`)
	colorRegex        = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// validate is shared; the validator caches struct metadata.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "category_name", func(fl validator.FieldLevel) bool {
		return categoryNameRegex.MatchString(fl.Field().String())
	})
	mustRegister(v, "color6", func(fl validator.FieldLevel) bool {
		return colorRegex.MatchString(fl.Field().String())
	})
	mustRegister(v, "emoji", func(fl validator.FieldLevel) bool {
		return IsSingleEmoji(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// validateStruct runs struct validation and converts failures to a
// ValidationError keyed by JSON field name.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = friendlyMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", e.Param())
		}
		return "must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", e.Param())
		}
		return "must not exceed " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "category_name":
		return "must contain only lowercase letters, digits and dashes"
	case "color6":
		return "must be a hex color like #ff6b6b"
	case "emoji":
		return "must be a single emoji"
	default:
		return "is invalid"
	}
}

// IsSingleEmoji reports whether s is exactly one grapheme cluster that
// contains an emoji code point.
func IsSingleEmoji(s string) bool {
	if s == "" || uniseg.GraphemeClusterCount(s) != 1 {
		return false
	}
	for _, r := range s {
		if isEmojiRune(r) {
			return true
		}
	}
	return false
}

func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // pictographs, emoticons, transport, flags
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x2300 && r <= 0x23FF: // misc technical (⌚, ⏰)
		return true
	case r >= 0x2B00 && r <= 0x2BFF: // arrows, ⭐
		return true
	case r == 0x00A9 || r == 0x00AE || r == 0x203C || r == 0x2049 || r == 0x2122 || r == 0x2139:
		return true
	}
	return false
}

// Field map limits for ingestion.
const (
	MaxFieldCount     = 50
	MaxFieldKeyLength = 64
	MaxFieldStringLen = 1024
)

// validateFields checks the field map limits and reports every offending key.
func validateFields(fields model.Fields) error {
	problems := map[string]string{}
	if len(fields) > MaxFieldCount {
		problems["fields"] = fmt.Sprintf("must not have more than %d keys", MaxFieldCount)
	}
	for _, f := range fields {
		n := uniseg.GraphemeClusterCount(f.Key)
		if strings.TrimSpace(f.Key) == "" || n > MaxFieldKeyLength {
			problems["fields."+f.Key] = fmt.Sprintf("key must be 1 to %d characters", MaxFieldKeyLength)
			continue
		}
		if s, ok := f.Value.Str(); ok && len([]rune(s)) > MaxFieldStringLen {
			problems["fields."+f.Key] = fmt.Sprintf("must not exceed %d characters", MaxFieldStringLen)
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Fields: problems}
	}
	return nil
}
