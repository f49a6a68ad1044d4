// Package ber converts BER encoded ASN.1 into DER.
//
// Go's encoding/asn1 only accepts DER. Authenticode signature blocks written
// by signtool, osslsigncode and older Windows tooling regularly use BER
// constructs (indefinite lengths, constructed OCTET STRINGs) for the outer
// PKCS #7 ContentInfo, so the container parser runs every signature block
// through Normalize before unmarshaling it.
//
// Only the first top-level element is converted. Whatever follows it, such as
// the zero padding that aligns WIN_CERTIFICATE entries to eight bytes, is
// reported through the consumed count of NormalizeBytes and otherwise ignored.
package ber

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Tag byte layout (X.690 section 8.1.2).
const (
	classMask      byte = 0xC0
	constructedBit byte = 0x20
	tagNumberMask  byte = 0x1F
	longFormTag    byte = 0x1F
	moreTagBytes   byte = 0x80
	classUniversal byte = 0x00
)

// Universal tag numbers that DER requires to be primitive.
const (
	tagBoolean         byte = 0x01
	tagInteger         byte = 0x02
	tagBitString       byte = 0x03
	tagOctetString     byte = 0x04
	tagUTF8String      byte = 0x0C
	tagNumericString   byte = 0x12
	tagPrintableString byte = 0x13
	tagT61String       byte = 0x14
	tagIA5String       byte = 0x16
	tagUTCTime         byte = 0x17
	tagGeneralizedTime byte = 0x18
	tagVisibleString   byte = 0x1A
	tagGeneralString   byte = 0x1B
)

const (
	lengthIndefinite byte = 0x80
	lengthLongForm   byte = 0x80
	lengthOctetsMask byte = 0x7F
	maxLengthOctets       = 4
	maxDepth              = 64
)

// ErrTruncated is returned when an element claims more bytes than the input
// holds.
var ErrTruncated = errors.New("ber: truncated input")

// Normalize reads r to the end and returns the DER encoding of the first
// element found in it.
func Normalize(r io.Reader) ([]byte, error) {
	input, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ber: reading input: %w", err)
	}
	der, _, err := NormalizeBytes(input)
	return der, err
}

// NormalizeBytes returns the DER encoding of the first element of input and
// the number of input bytes that element occupied.
func NormalizeBytes(input []byte) ([]byte, int, error) {
	var out bytes.Buffer
	d := decoder{input: input}
	n, err := d.element(0, &out, 0)
	if err != nil {
		return nil, 0, err
	}
	return out.Bytes(), n, nil
}

type header struct {
	tag        byte
	tagLen     int
	size       int // header length in bytes
	length     int // content length, meaningless when indefinite
	indefinite bool
}

func (h header) constructed() bool { return h.tag&constructedBit != 0 }

// mustBePrimitive reports whether DER forbids the constructed form for h.
func (h header) mustBePrimitive() bool {
	if h.tag&classMask != classUniversal {
		return false
	}
	switch h.tag & tagNumberMask {
	case tagBitString, tagOctetString, tagUTF8String, tagNumericString,
		tagPrintableString, tagT61String, tagIA5String, tagUTCTime,
		tagGeneralizedTime, tagVisibleString, tagGeneralString:
		return true
	}
	return false
}

type decoder struct {
	input []byte
}

// header decodes the identifier and length octets at off.
func (d *decoder) header(off int) (header, error) {
	in := d.input
	if off >= len(in) {
		return header{}, ErrTruncated
	}
	h := header{tag: in[off], size: 1}

	if h.tag&tagNumberMask == longFormTag {
		for {
			if off+h.size >= len(in) {
				return header{}, fmt.Errorf("ber: long-form tag: %w", ErrTruncated)
			}
			b := in[off+h.size]
			h.size++
			if b&moreTagBytes == 0 {
				break
			}
		}
	}
	h.tagLen = h.size

	if off+h.size >= len(in) {
		return header{}, fmt.Errorf("ber: length: %w", ErrTruncated)
	}
	lb := in[off+h.size]
	h.size++

	switch {
	case lb == lengthIndefinite:
		h.indefinite = true
	case lb&lengthLongForm == 0:
		h.length = int(lb)
	default:
		n := int(lb & lengthOctetsMask)
		if n > maxLengthOctets {
			return header{}, fmt.Errorf("ber: %d length octets not supported", n)
		}
		if off+h.size+n > len(in) {
			return header{}, fmt.Errorf("ber: long-form length: %w", ErrTruncated)
		}
		var buf [maxLengthOctets]byte
		copy(buf[maxLengthOctets-n:], in[off+h.size:off+h.size+n])
		h.length = int(binary.BigEndian.Uint32(buf[:]))
		h.size += n
	}
	if h.length < 0 {
		return header{}, errors.New("ber: negative length")
	}
	return h, nil
}

// element converts the element at off and writes it to out. It returns the
// number of input bytes consumed.
func (d *decoder) element(off int, out *bytes.Buffer, depth int) (int, error) {
	if depth > maxDepth {
		return 0, errors.New("ber: nesting too deep")
	}
	h, err := d.header(off)
	if err != nil {
		return 0, err
	}
	start := off + h.size
	tag := append([]byte(nil), d.input[off:off+h.tagLen]...)

	if !h.constructed() && !h.indefinite {
		end := start + h.length
		if end > len(d.input) || end < start {
			return 0, ErrTruncated
		}
		value, err := canonicalPrimitive(h.tag, d.input[start:end])
		if err != nil {
			return 0, err
		}
		writeElement(out, tag, value)
		return end - off, nil
	}

	if !h.constructed() && !h.mustBePrimitive() {
		return 0, errors.New("ber: indefinite length on a primitive non-string element")
	}

	var inner bytes.Buffer
	var end int
	if h.indefinite {
		pos := start
		for {
			if pos+1 >= len(d.input) {
				return 0, errors.New("ber: missing end-of-contents")
			}
			if d.input[pos] == 0 && d.input[pos+1] == 0 {
				end = pos + 2
				break
			}
			n, err := d.element(pos, &inner, depth+1)
			if err != nil {
				return 0, err
			}
			pos += n
		}
	} else {
		end = start + h.length
		if end > len(d.input) || end < start {
			return 0, ErrTruncated
		}
		for pos := start; pos < end; {
			n, err := d.element(pos, &inner, depth+1)
			if err != nil {
				return 0, err
			}
			pos += n
			if pos > end {
				return 0, errors.New("ber: child element overruns its parent")
			}
		}
	}

	if h.mustBePrimitive() {
		flat, err := flatten(h.tag&tagNumberMask, inner.Bytes())
		if err != nil {
			return 0, err
		}
		tag[0] &^= constructedBit
		writeElement(out, tag, flat)
		return end - off, nil
	}

	// An empty indefinite element stays present with a zero length; dropping
	// it would turn a signed empty payload into a detached signature.
	writeElement(out, tag, inner.Bytes())
	return end - off, nil
}

// flatten joins the DER chunks of a constructed string into one primitive
// value. BIT STRING chunks each carry an unused-bits octet; only the last one
// may be non-zero and it becomes the unused-bits octet of the result.
func flatten(tagNumber byte, chunks []byte) ([]byte, error) {
	var data bytes.Buffer
	var unused byte
	sub := decoder{input: chunks}
	for pos := 0; pos < len(chunks); {
		h, err := sub.header(pos)
		if err != nil {
			return nil, err
		}
		valueStart := pos + h.size
		valueEnd := valueStart + h.length
		if valueEnd > len(chunks) {
			return nil, ErrTruncated
		}
		value := chunks[valueStart:valueEnd]
		if tagNumber == tagBitString {
			if len(value) == 0 {
				return nil, errors.New("ber: BIT STRING chunk without unused-bits octet")
			}
			if unused != 0 {
				return nil, errors.New("ber: unused bits in a non-final BIT STRING chunk")
			}
			unused = value[0]
			value = value[1:]
		}
		data.Write(value)
		pos = valueEnd
	}
	if tagNumber == tagBitString {
		return append([]byte{unused}, data.Bytes()...), nil
	}
	return data.Bytes(), nil
}

// canonicalPrimitive applies the DER value rules for BOOLEAN and INTEGER.
func canonicalPrimitive(tag byte, value []byte) ([]byte, error) {
	if tag&classMask != classUniversal {
		return value, nil
	}
	switch tag & tagNumberMask {
	case tagBoolean:
		if len(value) != 1 {
			return nil, fmt.Errorf("ber: BOOLEAN of %d bytes", len(value))
		}
		if value[0] != 0 {
			return []byte{0xFF}, nil
		}
	case tagInteger:
		if len(value) == 0 {
			return nil, errors.New("ber: empty INTEGER")
		}
		i := 0
		for i < len(value)-1 && value[i] == 0 && value[i+1]&0x80 == 0 {
			i++
		}
		return value[i:], nil
	}
	return value, nil
}

// writeElement writes the identifier octets, a minimal definite length and
// value.
func writeElement(out *bytes.Buffer, tag []byte, value []byte) {
	out.Write(tag)
	n := len(value)
	switch {
	case n < 0x80:
		out.WriteByte(byte(n))
	case n <= 0xFF:
		out.Write([]byte{0x81, byte(n)})
	case n <= 0xFFFF:
		out.Write([]byte{0x82, byte(n >> 8), byte(n)})
	case n <= 0xFFFFFF:
		out.Write([]byte{0x83, byte(n >> 16), byte(n >> 8), byte(n)})
	default:
		out.Write([]byte{0x84, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	}
	out.Write(value)
}
