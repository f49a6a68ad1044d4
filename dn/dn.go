// Package dn parses the distinguished name strings found in certificate issuer
// and subject fields into an ordered list of attribute type/value pairs.
//
// The parser is a best-effort reader for RFC 2253 style strings such as
// "CN=Widget Signing,O=Acme\, Inc.,C=US". It is not a conformant RFC 2253 or
// RFC 4514 implementation:
//
//   - Escaping is only partially undone. Every backslash is removed from a
//     value; hex pairs ("\2C") are not decoded and quoted values are returned
//     with their quotes.
//   - A backslash that occurs before the next '=' stops parsing. Escaped
//     characters inside an attribute type are not supported, and the parser
//     returns the pairs accumulated so far rather than risk misreading a
//     separator. Callers must treat a parsed Name as possibly truncated.
//   - A ',' that occurs before the next '=' also stops parsing.
//
// Parsing never fails; malformed input yields a shorter (possibly empty) Name.
package dn

import "strings"

// Attribute is a single attribute type/value pair of a distinguished name.
type Attribute struct {
	// Type is the attribute type as written in the source, for example "O" or
	// "CN", with surrounding whitespace removed.
	Type string
	// Value is the attribute value with backslash escape markers removed.
	Value string
}

// Name is an ordered sequence of attributes in the order they appear in the
// source string. Attribute types are not required to be unique.
type Name []Attribute

// Parse reads raw left to right and returns the attributes it could
// recognize. Empty or whitespace-only input yields an empty Name.
func Parse(raw string) Name {
	content := strings.TrimSpace(raw)
	var name Name

	for {
		equalIndex := strings.Index(content, "=")
		if equalIndex <= 0 {
			break
		}

		escapedIndex := strings.Index(content, `\`)
		if escapedIndex >= 0 && escapedIndex < equalIndex {
			break
		}

		commaIndex := strings.Index(content, ",")
		if commaIndex >= 0 && commaIndex < equalIndex {
			break
		}

		attrType := strings.TrimSpace(content[:equalIndex])

		// A comma directly behind the first backslash is escaped and belongs
		// to the value; the separator is the next comma after it.
		if commaIndex == escapedIndex+1 {
			next := strings.Index(content[commaIndex+1:], ",")
			if next >= 0 {
				next += commaIndex + 1
			}
			commaIndex = next
		}

		if commaIndex < 0 {
			name = append(name, Attribute{
				Type:  attrType,
				Value: unescape(content[equalIndex+1:]),
			})
			break
		}

		name = append(name, Attribute{
			Type:  attrType,
			Value: unescape(content[equalIndex+1 : commaIndex]),
		})
		content = content[commaIndex+1:]
	}

	return name
}

// Lookup returns the value of the first attribute whose type equals attrType
// (case-sensitive), or the empty string when there is none.
func (n Name) Lookup(attrType string) string {
	for _, attr := range n {
		if attr.Type == attrType {
			return attr.Value
		}
	}
	return ""
}

// Organization returns the value of the first "O" attribute.
func (n Name) Organization() string {
	return n.Lookup("O")
}

// String renders the parsed attributes as "type=value" pairs joined by ", ".
// Values are not re-escaped, so the result is meant for diagnostics only.
func (n Name) String() string {
	parts := make([]string, 0, len(n))
	for _, attr := range n {
		parts = append(parts, attr.Type+"="+attr.Value)
	}
	return strings.Join(parts, ", ")
}

func unescape(s string) string {
	return strings.ReplaceAll(s, `\`, "")
}
