package utils

import (
	"strings"
)

// MinPlateLength is the shortest normalized text accepted as a plate.
const MinPlateLength = 4

// NormalizePlate uppercases the input and keeps only ASCII letters and digits.
func NormalizePlate(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsPlausiblePlate reports whether normalized text is long enough to be a plate.
func IsPlausiblePlate(normalized string) bool {
	return len(normalized) >= MinPlateLength
}
