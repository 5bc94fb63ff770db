package models

import (
	"fmt"
	"unicode/utf8"
)

// Column widths for identifiers and contact fields
const (
	MaxReservationIDLength = 64
	MaxDriverIDLength      = 64
	MaxNameLength          = 255
	MaxPhoneLength         = 32
	MaxPlateNumberLength   = 32
	MaxCategoryLength      = 64
)

// CheckLength fails when value does not fit a column of max characters
func CheckLength(field, value string, max int) error {
	if n := utf8.RuneCountInString(value); n > max {
		return fmt.Errorf("%s must be at most %d characters, got %d", field, max, n)
	}
	return nil
}
