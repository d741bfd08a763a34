package services

import (
	"strconv"
	"strings"
	"time"
)

// Cell parsing is deliberately parse-or-null: a malformed cell yields a
// nil value, never an error, so one bad cell cannot sink an otherwise
// valid row.

// excelEpoch is day zero of the spreadsheet date serial scheme.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// CleanIdentifier strips everything but digits from a CPF-like value,
// left-pads to 11 digits and truncates when longer. Returns "" when no
// digit survives.
func CleanIdentifier(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if len(digits) > 11 {
		return digits[:11]
	}
	return strings.Repeat("0", 11-len(digits)) + digits
}

// ParseDate accepts the four encodings seen in source files:
// DD/MM/YYYY, ISO YYYY-MM-DD, 8-digit YYYYMMDD, and a spreadsheet date
// serial. Anything else is "no date".
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if strings.Contains(raw, "/") {
		if t, err := time.ParseInLocation("02/01/2006", raw, time.UTC); err == nil {
			return &t
		}
		return nil
	}
	if strings.Contains(raw, "-") {
		if t, err := time.ParseInLocation("2006-01-02", raw, time.UTC); err == nil {
			return &t
		}
		return nil
	}

	digits := true
	for _, r := range raw {
		if r < '0' || r > '9' {
			digits = false
			break
		}
	}
	if !digits {
		return nil
	}

	if len(raw) == 8 {
		if t, err := time.ParseInLocation("20060102", raw, time.UTC); err == nil {
			return &t
		}
		return nil
	}

	// Short all-digit values are spreadsheet serials (days since the
	// 1899-12-30 epoch). 2958465 is 9999-12-31.
	if serial, err := strconv.Atoi(raw); err == nil && serial > 0 && serial <= 2958465 && len(raw) <= 7 {
		t := excelEpoch.AddDate(0, 0, serial)
		return &t
	}
	return nil
}

// ParseDecimal parses a money-like value permissively: everything except
// digits, comma, dot and minus is stripped first, and a comma is treated
// as the decimal separator. Returns nil on failure.
func ParseDecimal(raw string) *float64 {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return nil
	}
	if strings.Contains(s, ",") {
		// Brazilian format: dots are thousands separators.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// OptionalString trims a cell and returns nil when blank.
func OptionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
