package store

import "strings"

// Split breaks a slash-separated tree path into its segments.
func Split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Join assembles path segments into a slash-separated tree path.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// isPrefix reports whether a is a path prefix of b (or equal to it).
func isPrefix(a, b []string) bool {
	if len(a) > len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
