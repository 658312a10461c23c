package kibi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidByteSizeString = fmt.Errorf("Invalid byte size string")

var numberRegex = regexp.MustCompile(`^\d+(\.\d+)?`)

var units = []string{"bytes", "KB", "MB", "GB", "TB", "PB"}

// FormatBytes uses the largest unit that fits, with at most one decimal place, eg "1.5 MB"
func FormatBytes(b int64) string {
	if b < 1024 {
		return fmt.Sprintf("%v bytes", b)
	}
	v := float64(b)
	unit := 0
	for v >= 1024 && unit < len(units)-1 {
		v /= 1024
		unit++
	}
	return strconv.FormatFloat(float64(int64(v*10))/10, 'f', -1, 64) + " " + units[unit]
}

// ParseBytes accepts suffixes 'kb', 'mb', 'gb', etc, or just the letter ('k', 'm', 'g').
// Examples:
// 123 m -> 123*1024*1024
// 1.5 GB -> 1.5*1024*1024*1024
// 50 bytes -> 50
func ParseBytes(v string) (int64, error) {
	v = strings.TrimSpace(strings.ToLower(v))
	number := numberRegex.FindString(v)
	if number == "" {
		return 0, ErrInvalidByteSizeString
	}
	multiplier := int64(1)
	switch strings.TrimSpace(v[len(number):]) {
	case "", "bytes", "b":
	case "kb", "k":
		multiplier = 1024
	case "mb", "m":
		multiplier = 1024 * 1024
	case "gb", "g":
		multiplier = 1024 * 1024 * 1024
	case "tb", "t":
		multiplier = 1024 * 1024 * 1024 * 1024
	case "pb", "p":
		multiplier = 1024 * 1024 * 1024 * 1024 * 1024
	default:
		return 0, ErrInvalidByteSizeString
	}
	if !strings.Contains(number, ".") {
		value, err := strconv.ParseInt(number, 10, 64)
		if err != nil {
			return 0, err
		}
		return value * multiplier, nil
	}
	if multiplier == 1 {
		// Fractional bytes
		return 0, ErrInvalidByteSizeString
	}
	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, err
	}
	return int64(value * float64(multiplier)), nil
}
