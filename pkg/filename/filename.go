// Package filename normalizes client supplied file names.
package filename

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	fallback   = "file"
	maxNameLen = 100

	// MaxCleanLen bounds Clean in characters.
	MaxCleanLen = 255
	// MaxExtLen bounds Ext in bytes, dot included.
	MaxExtLen = 16
)

var windowsReserved = map[string]struct{}{
	"con": {}, "prn": {}, "aux": {}, "nul": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {}, "com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {}, "lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

// Clean keeps the name a user would recognize: last path element only,
// NFC normalized, without control characters, at most MaxCleanLen
// characters. Truncation shortens the base and keeps a short extension.
func Clean(original string) string {
	s := strings.ReplaceAll(strings.TrimSpace(original), "\\", "/")
	s = path.Base(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = norm.NFC.String(strings.TrimSpace(s))

	if s == "." || s == ".." || s == "/" || s == "" {
		return fallback
	}
	return truncate(s)
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxCleanLen {
		return s
	}

	ext := path.Ext(s)
	if len(ext) > MaxExtLen || utf8.RuneCountInString(ext) == utf8.RuneCountInString(s) {
		ext = ""
	}
	base := []rune(strings.TrimSuffix(s, ext))
	base = base[:MaxCleanLen-utf8.RuneCountInString(ext)]

	return string(base) + ext
}

// Ext is the lowercase extension of original, "" when it has none or it is
// longer than MaxExtLen.
func Ext(original string) string {
	ext := strings.ToLower(path.Ext(Sanitize(original)))
	if ext == "." || len(ext) > MaxExtLen {
		return ""
	}
	return ext
}

// Sanitize makes a file name ASCII: [a-z0-9-] base plus lowercase extension.
func Sanitize(original string) string {
	s := Clean(original)
	if s == fallback {
		return fallback
	}

	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	s, _, _ = transform.String(t, s)

	ext := strings.ToLower(path.Ext(s))
	base := s
	if isASCIIExt(ext) {
		base = strings.TrimSuffix(s, path.Ext(s))
	} else {
		ext = ""
	}

	var b strings.Builder
	b.Grow(len(base))
	prevDash := false
	for _, r := range base {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z':
			b.WriteRune(r)
			prevDash = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
			prevDash = false
		case r == '-' || r == '_' || r == '.' || unicode.IsSpace(r):
			if !prevDash {
				b.WriteRune('-')
				prevDash = true
			}
		default:
		}
	}
	base = strings.Trim(b.String(), "-")

	if base == "" {
		base = fallback
	}
	if _, bad := windowsReserved[base]; bad {
		base = "_" + base
	}

	for utf8.RuneCountInString(base)+len(ext) > maxNameLen {
		_, size := utf8.DecodeLastRuneInString(base)
		if size <= 0 || size >= len(base) {
			break
		}
		base = base[:len(base)-size]
	}

	return base + ext
}

func isASCIIExt(ext string) bool {
	if len(ext) < 2 {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func isMn(r rune) bool { return unicode.Is(unicode.Mn, r) }
