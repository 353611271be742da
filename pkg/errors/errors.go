package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// Not-found reasons reported by chart resolution and lookups.
const (
	ReasonNoAssignment     = "no_assignment"
	ReasonTemplateInactive = "template_inactive"
	ReasonTemplateMissing  = "template_missing"
	ReasonNotFound         = "not_found"
)

// ValidationError reports bad input: a missing parameter, an invalid
// measurement, or a duplicate name. The message is always shown as-is.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

// NewValidationErrorf creates a ValidationError with a formatted message
func NewValidationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) AddField(field string) *ValidationError {
	e.Field = field
	return e
}

func (e *ValidationError) ToHTTPError() *httperror.HTTPError {
	err := httperror.NewHTTPError(http.StatusBadRequest, e.Message)
	if e.Field != "" {
		err = err.AddMetaValue("field", e.Field)
	}
	return err
}

// DuplicateNameError is the ValidationError for a (shop, name) collision.
func DuplicateNameError(name string) *ValidationError {
	return NewValidationErrorf("A template named %q already exists", name).AddField("name")
}

// NotFoundError reports that nothing applies, with the reason why.
type NotFoundError struct {
	Reason  string
	Message string
}

func NewNotFoundError(reason, msg string) *NotFoundError {
	return &NotFoundError{Reason: reason, Message: msg}
}

func (e *NotFoundError) Error() string {
	if e.Message == "" {
		return e.Reason
	}
	return e.Message
}

func (e *NotFoundError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusNotFound, e.Error()).AddMetaValue("reason", e.Reason)
}

// UpstreamError reports a failed call to a remote service. It carries enough
// detail for a merchant to diagnose the failure.
type UpstreamError struct {
	URL        string
	Shop       string
	ProductID  string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "upstream request failed"
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Details returns the diagnostic fields shown alongside the message.
func (e *UpstreamError) Details() map[string]any {
	details := map[string]any{
		"url":        e.URL,
		"shop":       e.Shop,
		"product_id": e.ProductID,
	}
	if e.StatusCode != 0 {
		details["status_code"] = e.StatusCode
	}
	return details
}

func (e *UpstreamError) ToHTTPError() *httperror.HTTPError {
	err := httperror.NewHTTPError(http.StatusBadGateway, e.Error())
	for k, v := range e.Details() {
		err = err.AddMetaValue(k, v)
	}
	return err
}

// ToHTTPError converts any of the typed errors above to an httperror. Errors
// that already are httperrors pass through; anything else becomes a 500.
func ToHTTPError(err error) *httperror.HTTPError {
	if err == nil {
		return nil
	}

	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.ToHTTPError()
	}
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return notFound.ToHTTPError()
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.ToHTTPError()
	}
	var httpErr *httperror.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return httperror.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// NotFoundReason returns the reason of a NotFoundError, or "" if err is not one.
func NotFoundReason(err error) string {
	var target *NotFoundError
	if errors.As(err, &target) {
		return target.Reason
	}
	return ""
}

// StatusCode returns the HTTP status err maps to.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return httperror.GetStatusCode(ToHTTPError(err))
}

// IsNotFound reports whether err is a NotFoundError or a 404 httperror.
func IsNotFound(err error) bool {
	return err != nil && StatusCode(err) == http.StatusNotFound
}
