package utils

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
)

// BindRequest decodes and validates an admin request body. Failures are
// ValidationErrors naming the first offending field in snake_case.
func BindRequest[T any](c echo.Context) (T, error) {
	var v T

	if err := c.Bind(&v); err != nil {
		return v, fernerrors.NewValidationError("Request body is not valid JSON")
	}

	if _, err := Validate(v); err != nil {
		verr := fernerrors.NewValidationError(err.Error())
		if field := invalidField(v); field != "" {
			verr = verr.AddField(field)
		}
		return v, verr
	}

	return v, nil
}

// invalidField returns the first field that fails validation.
func invalidField(v any) string {
	var verrs validator.ValidationErrors
	if !errors.As(validate.Struct(v), &verrs) || len(verrs) == 0 {
		return ""
	}
	return snakeCase(verrs[0].Field())
}

// snakeCase turns a Go field name into its JSON form: TemplateID -> template_id.
func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
