package goserver

import (
	"strings"
	"unicode"
)

// initialisms are rendered in upper case in Go identifiers.
var initialisms = map[string]bool{
	"api": true, "css": true, "db": true, "dns": true, "html": true,
	"http": true, "https": true, "id": true, "ip": true, "json": true,
	"jwt": true, "oidc": true, "sql": true, "ttl": true, "uri": true,
	"url": true, "utc": true, "uuid": true,
}

// FieldName returns the exported Go name of a lowerCamel contract field,
// e.g. "avatarUrl" becomes "AvatarURL".
func FieldName(name string) string {
	var b strings.Builder
	for _, w := range words(name) {
		if initialisms[strings.ToLower(w)] {
			b.WriteString(strings.ToUpper(w))
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// words splits a camelCase identifier at upper case letters.
func words(s string) []string {
	var (
		ws    []string
		start int
	)
	for i, r := range s {
		if i > start && unicode.IsUpper(r) {
			ws = append(ws, s[start:i])
			start = i
		}
	}
	if start < len(s) {
		ws = append(ws, s[start:])
	}
	return ws
}
