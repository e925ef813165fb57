package sharepoint

import (
	"net/url"
	"strings"
)

// CleanPath normalises an operator-supplied drive path: strips any trailing
// ":/content" suffix left over from copied Graph URLs, collapses repeated
// slashes and trims leading/trailing ones. The result is a relative path such
// as "reports/2026" or "" for the drive root.
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, ":/content", "")
	return strings.Join(Segments(p), "/")
}

// Segments splits a drive path into its non-empty segments.
func Segments(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// JoinPath joins a directory path and a file name into a single drive path.
func JoinPath(dir, name string) string {
	dir = CleanPath(dir)
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// SplitPath splits a drive path into its directory and final element.
func SplitPath(p string) (dir, name string) {
	p = CleanPath(p)
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return "", p
	}
	return p[:idx], p[idx+1:]
}

// escapePath percent-encodes each segment of a drive path for use inside a
// Graph URL, keeping the separating slashes intact.
func escapePath(p string) string {
	segments := Segments(p)
	for i := range segments {
		segments[i] = url.PathEscape(segments[i])
	}
	return strings.Join(segments, "/")
}
