package naming

import (
	"fmt"
	"strings"
	"unicode"
)

// Convention is the case style applied to generated identifiers.
type Convention int

const (
	Pascal Convention = iota
	Camel
	Snake
	Preserve
)

var conventionNames = map[Convention]string{
	Pascal:   "pascal",
	Camel:    "camel",
	Snake:    "snake",
	Preserve: "preserve",
}

func (c Convention) String() string {
	if s, ok := conventionNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Convention(%d)", int(c))
}

// ParseConvention accepts pascal, camel, snake and preserve. The empty
// string selects pascal.
func ParseConvention(s string) (Convention, error) {
	if s == "" {
		return Pascal, nil
	}
	for c, name := range conventionNames {
		if strings.EqualFold(s, name) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown case convention %q (want pascal, camel, snake or preserve)", s)
}

// initialisms are kept upper case in pascal and camel identifiers.
var initialisms = map[string]bool{
	"API": true, "ASCII": true, "CPU": true, "DNS": true, "GUID": true,
	"HTTP": true, "ID": true, "IP": true, "JSON": true, "QOS": true,
	"RTPS": true, "TCP": true, "TTL": true, "UDP": true, "UID": true,
	"URL": true, "UUID": true, "XML": true,
}

// Apply converts an IDL identifier to the convention.
func (c Convention) Apply(s string) string {
	if c == Preserve {
		return s
	}
	words := splitWords(s)
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	for i, w := range words {
		switch {
		case c == Snake:
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteString(strings.ToLower(w))
		case c == Camel && i == 0:
			b.WriteString(strings.ToLower(w))
		default:
			b.WriteString(titleWord(w))
		}
	}
	return b.String()
}

// suffix converts s for appending to an identifier already in the
// convention, as enumerator constants are appended to their enum name.
func (c Convention) suffix(s string) string {
	switch c {
	case Snake:
		return "_" + Snake.Apply(s)
	case Preserve:
		return "_" + s
	}
	return Pascal.Apply(s)
}

func titleWord(w string) string {
	if upper := strings.ToUpper(w); initialisms[upper] {
		return upper
	}
	r := []rune(strings.ToLower(w))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// splitWords splits on '_', '-' and spaces and at case boundaries:
// "sensorId" -> [sensor Id], "XMLParser" -> [XML Parser], "RED" -> [RED].
func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		if r == '_' || r == '-' || unicode.IsSpace(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(cur) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}
