package idempotency

import (
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/soumil-kumar17/MailMaven/pkg/errors"
)

// MaxKeyLength bounds caller supplied keys.
const MaxKeyLength = 128

// Key is a validated idempotency key. Construct it with ParseKey.
type Key struct {
	value string
}

// ParseKey rejects blank or oversized values and keys with surrounding
// whitespace. The key is used exactly as sent.
func ParseKey(raw string) (Key, error) {
	if strings.TrimSpace(raw) == "" {
		return Key{}, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key cannot be empty")
	}
	if strings.TrimSpace(raw) != raw {
		return Key{}, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key must not have surrounding whitespace")
	}
	if utf8.RuneCountInString(raw) > MaxKeyLength {
		return Key{}, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is too long").
			WithDetails(map[string]any{"max_length": MaxKeyLength})
	}
	return Key{value: raw}, nil
}

// String returns the key.
func (k Key) String() string {
	return k.value
}
