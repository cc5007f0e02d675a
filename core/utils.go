package core

import (
	"path/filepath"
	"strings"
	"time"
)

// NowFunc returns the current UTC time. Services keep their own copy so tests can move the clock.
type NowFunc func() time.Time

func UTCNow() time.Time { return time.Now().UTC() }

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanFilename strips any directory part of an uploaded file name and replaces whitespace.
func CleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(CleanString(name), "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return "file"
	}
	return strings.Join(strings.Fields(name), "_")
}
