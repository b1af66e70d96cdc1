package utils

import (
	"regexp"
	"strings"
)

var (
	userIDRegex   = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)
	roomCodeRegex = regexp.MustCompile(`^[0-9]{9}$`)
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator provides validation methods
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// AddError adds a validation error
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, &ValidationError{
		Field:   field,
		Message: message,
	})
}

// Errors returns all validation errors
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// HasErrors returns true if there are any validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Required checks if a string is not empty
func (v *Validator) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "此欄位為必填")
		return false
	}
	return true
}

// ValidateUserID checks the user handle format
func (v *Validator) ValidateUserID(field, value string) bool {
	if !userIDRegex.MatchString(value) {
		v.AddError(field, "帳號須為 3-50 位英數字、底線或連字號")
		return false
	}
	return true
}

// ValidateTimeRange checks that the meeting ends after it starts
func (v *Validator) ValidateTimeRange(field string, start, end int64) bool {
	if end <= start {
		v.AddError(field, "結束時間須晚於開始時間")
		return false
	}
	return true
}

// ValidateRoomCode checks the fixed-width numeric room code format
func ValidateRoomCode(code string) bool {
	return roomCodeRegex.MatchString(code)
}
