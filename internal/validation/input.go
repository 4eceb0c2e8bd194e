// Package validation bounds user-supplied input before it reaches the
// backend or the keyring.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Input length limits to prevent resource exhaustion
const (
	MaxAccountNameLength = 64
	MaxMessageLength     = 100000 // 100KB, matches the backend's own cap
	MaxRoutingKeyLength  = 128
)

var (
	accountNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)
	routingKeyRegex  = regexp.MustCompile(`^[a-z0-9_-]+(:[a-z0-9_-]+)*$`)
)

// ValidateAccountName checks a stored account name. Names become
// keyring keys, so the charset is deliberately narrow.
func ValidateAccountName(name string) error {
	if name == "" {
		return nil // callers substitute the default account
	}
	if utf8.RuneCountInString(name) > MaxAccountNameLength {
		return fmt.Errorf("account name exceeds %d characters", MaxAccountNameLength)
	}
	if !accountNameRegex.MatchString(name) {
		return fmt.Errorf("account name %q may only contain letters, digits, '.', '_' and '-'", name)
	}
	return nil
}

// ValidateMessageText checks outbound message content.
func ValidateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("message text is required")
	}
	if length := utf8.RuneCountInString(text); length > MaxMessageLength {
		return fmt.Errorf("message exceeds maximum length of %d characters (got %d)", MaxMessageLength, length)
	}
	return nil
}

// ValidateRoutingKey checks a sink routing key, e.g. "agent:main:main".
func ValidateRoutingKey(key string) error {
	if key == "" {
		return nil // defaults are applied downstream
	}
	if utf8.RuneCountInString(key) > MaxRoutingKeyLength {
		return fmt.Errorf("routing key exceeds %d characters", MaxRoutingKeyLength)
	}
	if !routingKeyRegex.MatchString(key) {
		return fmt.Errorf("routing key %q must be colon-separated lowercase segments", key)
	}
	return nil
}
