// Package cursor holds the continuation token used by paginated endpoints.
//
// The API sends cursors either as JSON numbers, JSON strings or XML element
// text. All of them are normalized into one Cursor value so that "0", 0 and
// "000" compare equal to Terminal.
package cursor

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/tidwall/gjson"
	errs "twaler/pkg/errors"
)

// Cursor is an opaque, normalized continuation token
type Cursor string

const (
	// Start requests the first page
	Start Cursor = "-1"
	// Terminal marks the last page
	Terminal Cursor = "0"
)

const field = "next_cursor"

// Parse normalizes a raw cursor value
func Parse(raw string) (Cursor, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errs.New(errs.ErrorTypeParsing, 0, "empty cursor")
	}
	if n, ok := canonicalInt(s); ok {
		return Cursor(n), nil
	}
	return Cursor(s), nil
}

// MustParse is Parse for literals known to be valid
func MustParse(raw string) Cursor {
	c, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// IsTerminal reports whether no further page exists
func (c Cursor) IsTerminal() bool {
	return c == Terminal
}

func (c Cursor) String() string {
	return string(c)
}

// Extract reads next_cursor from a response body, detecting JSON or XML
func Extract(body []byte) (Cursor, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n\ufeff")
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return FromXML(trimmed)
	}
	return FromJSON(trimmed)
}

// FromJSON reads next_cursor (or next_cursor_str) from a JSON document
func FromJSON(body []byte) (Cursor, error) {
	if !gjson.ValidBytes(body) {
		return "", errs.New(errs.ErrorTypeParsing, 0, "response is not valid JSON")
	}

	// the string form survives values beyond float precision
	if r := gjson.GetBytes(body, field+"_str"); r.Exists() && r.Type == gjson.String {
		return Parse(r.Str)
	}

	r := gjson.GetBytes(body, field)
	switch r.Type {
	case gjson.Number:
		return Parse(r.Raw)
	case gjson.String:
		return Parse(r.Str)
	default:
		if !r.Exists() {
			return "", errs.New(errs.ErrorTypeParsing, 0, "%s missing from response", field)
		}
		return "", errs.New(errs.ErrorTypeParsing, 0, "%s has unexpected value %s", field, r.Raw)
	}
}

// FromXML reads the first next_cursor element from an XML document
func FromXML(body []byte) (Cursor, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return "", errs.New(errs.ErrorTypeParsing, 0, "%s missing from response", field)
		}
		if err != nil {
			return "", errs.Wrap(errs.ErrorTypeParsing, 0, err, "response is not valid XML")
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != field {
			continue
		}
		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return "", errs.Wrap(errs.ErrorTypeParsing, 0, err, "malformed "+field)
		}
		return Parse(text)
	}
}

// canonicalInt strips leading zeros from an optionally signed digit string
func canonicalInt(s string) (string, bool) {
	neg := false
	digits := s
	if strings.HasPrefix(digits, "-") {
		neg = true
		digits = digits[1:]
	} else if strings.HasPrefix(digits, "+") {
		digits = digits[1:]
	}
	if digits == "" {
		return "", false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "0", true
	}
	if neg {
		return "-" + digits, true
	}
	return digits, true
}
