package ber

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    []byte
		wantErr bool
	}{
		{
			name:  "DER INTEGER unchanged",
			input: []byte{0x02, 0x01, 0x01},
			want:  []byte{0x02, 0x01, 0x01},
		},
		{
			name:  "DER SEQUENCE unchanged",
			input: []byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x02},
			want:  []byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x02},
		},
		{
			name:  "empty SEQUENCE unchanged",
			input: []byte{0x30, 0x00},
			want:  []byte{0x30, 0x00},
		},
		{
			name: "indefinite SEQUENCE",
			input: []byte{
				0x30, 0x80,
				0x02, 0x01, 0x2A,
				0x00, 0x00,
			},
			want: []byte{0x30, 0x03, 0x02, 0x01, 0x2A},
		},
		{
			name: "nested indefinite containers",
			input: []byte{
				0x30, 0x80,
				0x30, 0x80,
				0x02, 0x01, 0x07,
				0x00, 0x00,
				0x00, 0x00,
			},
			want: []byte{0x30, 0x05, 0x30, 0x03, 0x02, 0x01, 0x07},
		},
		{
			name: "explicit [0] around an empty indefinite OCTET STRING",
			input: []byte{
				0xA0, 0x80,
				0x04, 0x80,
				0x00, 0x00,
				0x00, 0x00,
			},
			want: []byte{0xA0, 0x02, 0x04, 0x00},
		},
		{
			name: "constructed OCTET STRING flattened",
			input: []byte{
				0x24, 0x08,
				0x04, 0x03, 0x01, 0x02, 0x03,
				0x04, 0x01, 0x04,
			},
			want: []byte{0x04, 0x04, 0x01, 0x02, 0x03, 0x04},
		},
		{
			name: "indefinite constructed OCTET STRING flattened",
			input: []byte{
				0x24, 0x80,
				0x04, 0x02, 0xAA, 0xBB,
				0x04, 0x01, 0xCC,
				0x00, 0x00,
			},
			want: []byte{0x04, 0x03, 0xAA, 0xBB, 0xCC},
		},
		{
			name: "constructed BIT STRING flattened",
			input: []byte{
				0x23, 0x08,
				0x03, 0x03, 0x00, 0xAB, 0xCD,
				0x03, 0x01, 0x00,
			},
			want: []byte{0x03, 0x03, 0x00, 0xAB, 0xCD},
		},
		{
			name:    "BIT STRING with unused bits in a non-final chunk",
			input:   []byte{0x23, 0x06, 0x03, 0x02, 0x04, 0xF0, 0x03, 0x00},
			wantErr: true,
		},
		{
			name:  "BOOLEAN true canonicalized",
			input: []byte{0x01, 0x01, 0x42},
			want:  []byte{0x01, 0x01, 0xFF},
		},
		{
			name:  "BOOLEAN false kept",
			input: []byte{0x01, 0x01, 0x00},
			want:  []byte{0x01, 0x01, 0x00},
		},
		{
			name:  "INTEGER redundant zeros removed",
			input: []byte{0x02, 0x03, 0x00, 0x00, 0x01},
			want:  []byte{0x02, 0x01, 0x01},
		},
		{
			name:  "INTEGER sign octet kept",
			input: []byte{0x02, 0x02, 0x00, 0x80},
			want:  []byte{0x02, 0x02, 0x00, 0x80},
		},
		{
			name:  "non-minimal length shortened",
			input: []byte{0x04, 0x81, 0x03, 0x01, 0x02, 0x03},
			want:  []byte{0x04, 0x03, 0x01, 0x02, 0x03},
		},
		{
			name:  "long-form tag kept intact",
			input: []byte{0x9F, 0x81, 0x01, 0x01, 0x07},
			want:  []byte{0x9F, 0x81, 0x01, 0x01, 0x07},
		},
		{
			name:    "empty input",
			input:   []byte{},
			wantErr: true,
		},
		{
			name:    "truncated element",
			input:   []byte{0x02, 0x05, 0x01},
			wantErr: true,
		},
		{
			name:    "missing end-of-contents",
			input:   []byte{0x30, 0x80, 0x02, 0x01, 0x01},
			wantErr: true,
		},
		{
			name:    "length field too wide",
			input:   []byte{0x04, 0x85, 0x01, 0x00, 0x00, 0x00, 0x00},
			wantErr: true,
		},
		{
			name:    "BOOLEAN with two octets",
			input:   []byte{0x01, 0x02, 0x01, 0x01},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(bytes.NewReader(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// WIN_CERTIFICATE entries are padded to a multiple of eight bytes; the padding
// must be reported as unconsumed rather than rejected.
func TestNormalizeBytes_TrailingPadding(t *testing.T) {
	input := []byte{
		0x30, 0x80,
		0x02, 0x01, 0x01,
		0x00, 0x00,
		0x00, 0x00, 0x00, // padding
	}

	der, consumed, err := NormalizeBytes(input)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30, 0x03, 0x02, 0x01, 0x01}, der)
	assert.Equal(t, 7, consumed)
}

func TestNormalizeBytes_LongContent(t *testing.T) {
	payload := bytes.Repeat([]byte{0x5A}, 300)
	input := append([]byte{0x04, 0x84, 0x00, 0x00, 0x01, 0x2C}, payload...)

	der, consumed, err := NormalizeBytes(input)
	require.NoError(t, err)
	assert.Equal(t, len(input), consumed)
	assert.Equal(t, []byte{0x04, 0x82, 0x01, 0x2C}, der[:4])
	assert.Equal(t, payload, der[4:])
}

func TestNormalize_DepthLimit(t *testing.T) {
	var input []byte
	for range maxDepth + 2 {
		input = append(input, 0x30, 0x80)
	}
	for range maxDepth + 2 {
		input = append(input, 0x00, 0x00)
	}

	_, err := Normalize(bytes.NewReader(input))
	require.Error(t, err)
}

var benchResult []byte

func BenchmarkNormalize(b *testing.B) {
	var buf bytes.Buffer
	buf.Write([]byte{0x30, 0x80})
	for i := range 20 {
		buf.Write([]byte{0x24, 0x80, 0x04, 0x01, byte(i), 0x04, 0x01, byte(i + 1), 0x00, 0x00})
	}
	buf.Write([]byte{0x00, 0x00})
	input := buf.Bytes()

	var r []byte
	for b.Loop() {
		var err error
		r, err = Normalize(bytes.NewReader(input))
		if err != nil {
			b.Fatal(err)
		}
	}
	benchResult = r
}
