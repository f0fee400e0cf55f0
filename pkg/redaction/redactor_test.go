package redaction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactCategories(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name     string
		text     string
		original string
		category string
	}{
		{"ssn with dashes", "SSN on file: 123-45-6789 per records", "123-45-6789", "SSN"},
		{"ssn with spaces", "SSN 123 45 6789 verified", "123 45 6789", "SSN"},
		{"email", "Contact john.doe@example.com for notices", "john.doe@example.com", "Email"},
		{"phone", "Call 415-555-0134 during business hours", "415-555-0134", "Phone"},
		{"visa card", "Card ending 4111111111111111 on record", "4111111111111111", "CreditCard"},
		{"dob long month", "Born on January 5, 1990 in Ohio", "January 5, 1990", "DOB"},
		{"dob abbreviated", "DOB: Mar 22, 1985 confirmed", "Mar 22, 1985", "DOB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			redacted, piiMap, categories := r.Redact(tt.text)

			assert.NotContains(t, redacted, tt.original)
			placeholder := "[REDACTED-" + tt.category + "-1]"
			assert.Contains(t, redacted, placeholder)
			assert.Equal(t, tt.original, piiMap[placeholder])
			assert.Equal(t, []string{tt.category}, categories)
		})
	}
}

func TestRedactNumbersPlaceholdersPerCategory(t *testing.T) {
	r := NewRedactor()

	text := "Email a@x.com or b@y.org, phone 415-555-0134"
	redacted, piiMap, categories := r.Redact(text)

	assert.Contains(t, redacted, "[REDACTED-Email-1]")
	assert.Contains(t, redacted, "[REDACTED-Email-2]")
	assert.Contains(t, redacted, "[REDACTED-Phone-1]")
	assert.Len(t, piiMap, 3)
	assert.Equal(t, []string{"Email", "Phone"}, categories)
}

func TestRedactPlainNineDigitsLeftAlone(t *testing.T) {
	r := NewRedactor()

	// Account numbers without separators must not trip the SSN pattern.
	text := "Account number 123456789 is active"
	redacted, piiMap, _ := r.Redact(text)

	assert.Equal(t, text, redacted)
	assert.Empty(t, piiMap)
}

func TestRedactEmptyInput(t *testing.T) {
	r := NewRedactor()

	redacted, piiMap, categories := r.Redact("")
	assert.Equal(t, "", redacted)
	assert.Empty(t, piiMap)
	assert.Nil(t, categories)
}

func TestRedactRestoreRoundTrip(t *testing.T) {
	r := NewRedactor()

	text := "Tenant John (john@example.com, 415-555-0134, SSN 123-45-6789, " +
		"born January 5, 1990) authorizes charges to 4111111111111111."
	redacted, piiMap, categories := r.Redact(text)

	require.NotEqual(t, text, redacted)
	assert.Equal(t, []string{"CreditCard", "DOB", "Email", "Phone", "SSN"}, categories)

	assert.Equal(t, text, Restore(redacted, piiMap))
}

func TestRedactStablePlaceholders(t *testing.T) {
	r := NewRedactor()

	text := "first@a.com then second@b.com"
	redactedA, _, _ := r.Redact(text)
	redactedB, _, _ := r.Redact(text)

	assert.Equal(t, redactedA, redactedB)
	assert.Less(t, strings.Index(redactedA, "[REDACTED-Email-1]"), strings.Index(redactedA, "[REDACTED-Email-2]"))
}

func TestRestoreWithEmptyMap(t *testing.T) {
	assert.Equal(t, "unchanged", Restore("unchanged", nil))
}
