package utils

import "strings"

// ToStringSlice keeps the string elements of a decoded JSON array, trimmed,
// dropping empty ones and anything that is not a string.
func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0, len(slice))
	for _, v := range slice {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}
