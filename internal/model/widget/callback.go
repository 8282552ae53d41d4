package widget

import "fmt"

// CallbackRequest is the draft of the "request a callback" form.
type CallbackRequest struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	PreferredTime string `json:"preferredTime,omitempty"`
	Consent       bool   `json:"consent"`
}

// ValidationCode classifies callback form failures.
type ValidationCode string

const (
	MissingName    ValidationCode = "MissingName"
	InvalidPhone   ValidationCode = "InvalidPhone"
	MissingConsent ValidationCode = "MissingConsent"
	DeliveryFailed ValidationCode = "DeliveryFailed"
)

var validationMessages = map[ValidationCode]string{
	MissingName:    "Please enter your name.",
	InvalidPhone:   "Please enter a valid phone number in E.164 format (e.g., +12125551234).",
	MissingConsent: "You must consent to be contacted.",
	DeliveryFailed: "We could not send your request. Please try again.",
}

// ValidationError is the single human readable error surfaced by the callback form.
type ValidationError struct {
	Code    ValidationCode `json:"code"`
	Message string         `json:"message"`
}

// NewValidationError builds the error for code with its display message.
func NewValidationError(code ValidationCode) *ValidationError {
	return &ValidationError{Code: code, Message: validationMessages[code]}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("callback form: %s", e.Code)
}
