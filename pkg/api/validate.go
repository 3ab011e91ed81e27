package api

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	validate        *validator.Validate
	identifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]*$`)
)

// A single validator instance is used because it caches struct parsing.
func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		return ok && identifierRegex.MatchString(str)
	}); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("printable", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		for _, r := range str {
			if !unicode.IsPrint(r) {
				return false
			}
		}
		return true
	}); err != nil {
		panic(err)
	}
}

// trackParams are the path parameters of POST /api/track.
type trackParams struct {
	Resource string `json:"resource" validate:"required,max=128,identifier"`
	Behavior string `json:"behavior" validate:"required,max=128,identifier"`
}

// moduleParams are the path parameters of GET /api/progress.
type moduleParams struct {
	Module string `json:"module" validate:"required,max=128,identifier"`
}

// progressParams are the path parameters of POST /api/progress.
type progressParams struct {
	Module  string `json:"module" validate:"required,max=128,identifier"`
	Section int    `json:"section" validate:"min=1,max=100000"`
	Page    int    `json:"page" validate:"min=1,max=100000"`
}

// usernameParams are the path parameters of POST /api/username.
type usernameParams struct {
	Username string `json:"username" validate:"required,max=64,printable"`
}

// check validates v and returns a client-facing message on failure.
func check(v any) error {
	err := validate.Struct(v)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid %s: failed %q", fe.Field(), fe.Tag())
	}
	if err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	return nil
}
