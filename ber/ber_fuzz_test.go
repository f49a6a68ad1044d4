package ber

import (
	"bytes"
	"testing"
)

var fuzzNormalizeSink []byte

// FuzzNormalize checks that NormalizeBytes never panics, never claims more
// input than it was given, and that its output is a fixed point.
func FuzzNormalize(f *testing.F) {
	f.Add([]byte{0x30, 0x00})
	f.Add([]byte{0x04, 0x00})
	f.Add([]byte{0x01, 0x01, 0x01})
	f.Add([]byte{0x02, 0x02, 0x00, 0x01})
	f.Add([]byte{0x30, 0x80, 0x01, 0x01, 0xFF, 0x00, 0x00})
	f.Add([]byte{0x24, 0x80, 0x04, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00})
	f.Add([]byte{0x30, 0x03, 0x02, 0x01, 0x01, 0x00, 0x00, 0x00})

	f.Fuzz(func(t *testing.T, data []byte) {
		der, consumed, err := NormalizeBytes(data)
		if err != nil {
			return
		}
		if consumed > len(data) {
			t.Fatalf("consumed %d of %d bytes", consumed, len(data))
		}
		fuzzNormalizeSink = der

		again, err := Normalize(bytes.NewReader(der))
		if err != nil {
			t.Fatalf("output does not normalize again: %v", err)
		}
		if !bytes.Equal(der, again) {
			t.Fatalf("output is not a fixed point")
		}
	})
}
