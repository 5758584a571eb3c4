package utils

// Truncate shortens s to maxLen bytes, appending an ellipsis when it was cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
