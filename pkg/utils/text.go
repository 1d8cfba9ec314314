// Package utils provides shared text formatting and logging helpers.
package utils

import (
	"strconv"
	"strings"
)

// Truncate returns s truncated to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// SplitWords splits a query line on whitespace and commas.
func SplitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

// FormatVector renders vec as "[v1 v2 ...]" with prec decimals. When maxValues > 0
// and vec is longer, the rest is elided as "... (+n)".
func FormatVector(vec []float32, prec, maxValues int) string {
	var sb strings.Builder
	sb.WriteByte('[')
	shown := len(vec)
	if maxValues > 0 && shown > maxValues {
		shown = maxValues
	}
	for i := 0; i < shown; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatFloat(float64(vec[i]), 'f', prec, 32))
	}
	if shown < len(vec) {
		sb.WriteString(" ... (+")
		sb.WriteString(strconv.Itoa(len(vec) - shown))
		sb.WriteByte(')')
	}
	sb.WriteByte(']')
	return sb.String()
}
