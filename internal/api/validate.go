package api

import (
	"regexp"
	"unicode/utf8"
)

// maxNameLen is the maximum length for display-name fields.
const maxNameLen = 200

// maxDescriptionLen is the maximum length for free-text description fields.
const maxDescriptionLen = 1000

// maxURLLen is the maximum length for URL fields.
const maxURLLen = 2048

// maxEmailLen is the maximum length for email addresses (RFC 5321).
const maxEmailLen = 254

// emailRe is a basic email format regex. Not exhaustive; validates structure only.
var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// areaCodeRe validates North American area codes: exactly 3 digits.
var areaCodeRe = regexp.MustCompile(`^\d{3}$`)

// postalCodeRe validates US ZIP codes: exactly 5 digits.
var postalCodeRe = regexp.MustCompile(`^\d{5}$`)

// e164Re validates E.164-formatted phone numbers.
var e164Re = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// validateStringLen checks that a string does not exceed maxLen runes.
// Returns an error message if invalid, empty string if OK.
func validateStringLen(field, value string, maxLen int) string {
	if utf8.RuneCountInString(value) > maxLen {
		return field + " exceeds maximum length"
	}
	return ""
}

// validateRequiredStringLen checks that a non-empty string does not exceed maxLen runes.
func validateRequiredStringLen(field, value string, maxLen int) string {
	if value == "" {
		return field + " is required"
	}
	return validateStringLen(field, value, maxLen)
}

// validateEmail checks that a string is a valid-looking email address.
// Empty values are allowed (optional field).
func validateEmail(field, value string) string {
	if value == "" {
		return ""
	}
	if len(value) > maxEmailLen {
		return field + " exceeds maximum length"
	}
	if !emailRe.MatchString(value) {
		return field + " is not a valid email address"
	}
	return ""
}

// validateAreaCode checks that a string is a 3-digit area code.
func validateAreaCode(field, value string) string {
	if !areaCodeRe.MatchString(value) {
		return field + " must be exactly 3 digits"
	}
	return ""
}

// validatePostalCode checks that a string is a 5-digit ZIP code.
func validatePostalCode(field, value string) string {
	if !postalCodeRe.MatchString(value) {
		return field + " must be exactly 5 digits"
	}
	return ""
}

// validateE164 checks that a string is an E.164 phone number.
func validateE164(field, value string) string {
	if !e164Re.MatchString(value) {
		return field + " must be an E.164 phone number"
	}
	return ""
}

// containsControlChars checks whether a string has control characters
// (except common whitespace like \n, \r, \t).
func containsControlChars(s string) bool {
	for _, r := range s {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			return true
		}
	}
	return false
}

// validateNoControlChars rejects strings with control characters.
func validateNoControlChars(field, value string) string {
	if containsControlChars(value) {
		return field + " contains invalid characters"
	}
	return ""
}
