package utils

import "strconv"

// ToStringSlice keeps the string members of a decoded JSON array
func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0)
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}

// ParseMillis parses a stored millisecond timestamp. Empty or malformed values report false.
func ParseMillis(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FormatMillis is the inverse of ParseMillis
func FormatMillis(ms int64) string {
	return strconv.FormatInt(ms, 10)
}
