package errors

import (
	"strings"
	"unicode"
)

// MaxSourceBytes bounds the size of a source artifact accepted for
// validation. Generated circuit descriptions are small; anything beyond this
// is either runaway generation or abuse of the API surface.
const MaxSourceBytes = 256 * 1024

// MaxMessageBytes bounds the size of a user request message.
const MaxMessageBytes = 32 * 1024

// ValidateSource validates a source artifact before it is handed to the
// worker process. The rules are intentionally conservative: size and
// character-level sanity only; everything syntactic is the validator's job.
func ValidateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return New(ErrCodeInvalidSource, "source cannot be empty")
	}
	if len(source) > MaxSourceBytes {
		return New(ErrCodeInvalidSource, "source too large (max %d bytes)", MaxSourceBytes)
	}
	if strings.ContainsRune(source, '\x00') {
		return New(ErrCodeInvalidSource, "source contains null bytes")
	}
	return nil
}

// ValidateMessage validates a user request message.
func ValidateMessage(msg string) error {
	if strings.TrimSpace(msg) == "" {
		return New(ErrCodeInvalidRequest, "message cannot be empty")
	}
	if len(msg) > MaxMessageBytes {
		return New(ErrCodeInvalidRequest, "message too long (max %d bytes)", MaxMessageBytes)
	}
	return nil
}

// ValidateElementName validates a schematic element name referenced by a
// layout change. Element names are ORD identifiers; rejecting anything else
// keeps the textual patcher from being steered by regex metacharacters.
func ValidateElementName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "element name cannot be empty")
	}
	if len(name) > 128 {
		return New(ErrCodeInvalidInput, "element name too long")
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return New(ErrCodeInvalidInput, "element name %q is not a valid identifier", name)
	}
	return nil
}
