package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// NewComponentID returns a random identifier for a new component row.
func NewComponentID() uuid.UUID {
	return uuid.New()
}

// SlugFor builds the per-org unique slug: kebab-case name, framework, and
// the first 8 hex chars of the id with dashes stripped.
func SlugFor(name string, framework Framework, id uuid.UUID) string {
	compact := strings.ReplaceAll(id.String(), "-", "")
	short := compact
	if len(short) > 8 {
		short = short[:8]
	}
	return Kebab(name) + "-" + string(framework) + "-" + short
}

// SourceHash digests the exact source text. Any change, including
// whitespace, yields a different hash.
func SourceHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Kebab converts PascalCase/camelCase/space/underscore-separated names to
// kebab-case: "DropdownMenu" -> "dropdown-menu".
func Kebab(name string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		switch {
		case r == ' ' || r == '_' || r == '-':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	return strings.Trim(b.String(), "-")
}

// Pascal converts kebab/snake/space-separated names to PascalCase:
// "dropdown-menu" -> "DropdownMenu".
func Pascal(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '.'
	})
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		runes := []rune(p)
		b.WriteRune(unicode.ToUpper(runes[0]))
		b.WriteString(string(runes[1:]))
	}
	return b.String()
}

// Camel lowercases the leading run-in of an identifier:
// "DropdownMenu" -> "dropdownMenu".
func Camel(name string) string {
	p := Pascal(name)
	if p == "" {
		return p
	}
	runes := []rune(p)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
