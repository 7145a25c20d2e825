package codec

import "strings"

// Characters reserved by the store's key syntax are percent-escaped. The
// escape character itself is escaped first so the mapping stays 1:1.
var (
	keyEscaper = strings.NewReplacer(
		"%", "%25",
		" ", "%20",
		"(", "%28",
		")", "%29",
		"[", "%5b",
		"]", "%5d",
	)
	keyUnescaper = strings.NewReplacer(
		"%25", "%",
		"%20", " ",
		"%28", "(",
		"%29", ")",
		"%5b", "[",
		"%5d", "]",
	)
	childEscaper   = strings.NewReplacer(".", "%2e", ":", "%3a")
	childUnescaper = strings.NewReplacer("%2e", ".", "%3a", ":")
	patternEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`)
)

// EscapeKey converts a logical key to its remote form.
func EscapeKey(key string) string { return keyEscaper.Replace(key) }

// UnescapeKey converts a remote key back to its logical form.
func UnescapeKey(key string) string { return keyUnescaper.Replace(key) }

// EscapeChild escapes a child name of a hierarchical map, including the
// path separators '.' and ':'.
func EscapeChild(name string) string { return childEscaper.Replace(EscapeKey(name)) }

// UnescapeChild reverses EscapeChild.
func UnescapeChild(name string) string { return UnescapeKey(childUnescaper.Replace(name)) }

// EscapePattern quotes glob metacharacters so an escaped key can be used as
// a literal prefix of a SCAN pattern.
func EscapePattern(key string) string { return patternEscaper.Replace(key) }
