package validation

import (
	"net"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// FormatValidator validates a string against a named format.
type FormatValidator func(value string) bool

// formatValidators maps format names to their validation functions.
// Unknown formats are advisory and always pass.
var formatValidators = map[string]FormatValidator{
	"email":     validateEmail,
	"uuid":      validateUUID,
	"date":      validateDate,
	"date-time": validateDateTime,
	"uri":       validateURI,
	"ipv4":      validateIPv4,
	"ipv6":      validateIPv6,
}

// ValidateFormat checks a value against the named format. Unknown formats
// are accepted.
func ValidateFormat(format, value string) bool {
	validator, known := formatValidators[strings.ToLower(format)]
	if !known {
		return true
	}
	return validator(value)
}

// IsKnownFormat reports whether the format has a registered validator.
func IsKnownFormat(format string) bool {
	_, known := formatValidators[strings.ToLower(format)]
	return known
}

// validateEmail applies a light RFC 5322 check plus a dotted-domain
// requirement, which catches the "not-an-email" class without rejecting
// unusual-but-legal local parts.
func validateEmail(value string) bool {
	if _, err := mail.ParseAddress(value); err != nil {
		return false
	}
	parts := strings.Split(value, "@")
	if len(parts) != 2 {
		return false
	}
	return strings.Contains(parts[1], ".")
}

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

func validateUUID(value string) bool {
	return uuidPattern.MatchString(value)
}

func validateDate(value string) bool {
	_, err := time.Parse("2006-01-02", value)
	return err == nil
}

func validateDateTime(value string) bool {
	_, err := time.Parse(time.RFC3339, value)
	return err == nil
}

// validateURI requires a scheme and a host.
func validateURI(value string) bool {
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

func validateIPv4(value string) bool {
	ip := net.ParseIP(value)
	return ip != nil && ip.To4() != nil
}

func validateIPv6(value string) bool {
	ip := net.ParseIP(value)
	return ip != nil && ip.To4() == nil && strings.Contains(value, ":")
}
