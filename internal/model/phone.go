package model

import "regexp"

var phonePattern = regexp.MustCompile(`^\+\d{1,15}$`)

// ValidPhone reports whether s is a + followed by 1 to 15 digits.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}
