package dn

import (
	"strings"
	"testing"
)

// FuzzParse verifies that Parse never panics, that every value has its
// escape markers removed and that no more pairs come out than '=' signs
// went in.
func FuzzParse(f *testing.F) {
	for _, seed := range []string{
		"",
		"O=Acme, CN=widget",
		`O=Ac\,me, CN=x`,
		`O=Acme\, CN=x`,
		`CN=x, O\=y=z`,
		"CN=Widget Signing,O=Acme\\, Inc.,C=US",
		"=,=,=",
		`\\\,,,===`,
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		name := Parse(raw)
		if len(name) > strings.Count(raw, "=") {
			t.Fatalf("%d attributes parsed from %q", len(name), raw)
		}
		for _, attr := range name {
			if strings.Contains(attr.Value, `\`) {
				t.Fatalf("value %q still contains a backslash", attr.Value)
			}
		}
	})
}
