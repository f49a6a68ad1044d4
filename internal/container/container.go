// Package container extracts the signer certificate from a signed file.
//
// Two containers are recognized: PE images (executables, DLLs, drivers) with
// an Authenticode signature in the attribute certificate table, and raw
// PKCS #7 SignedData files such as detached .p7s signatures and security
// catalogs. Parse only locates the signer; Verify checks the signature and,
// for PE images, the Authenticode image digest.
package container

import (
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	pkiasn1 "github.com/mdean75/sigident/internal/asn1"
)

// DefaultMaxSignatureSize bounds the signature block read from a file.
const DefaultMaxSignatureSize = 16 << 20

// Format identifies the kind of container a certificate was read from.
type Format int

const (
	FormatPE Format = iota + 1
	FormatPKCS7
)

func (f Format) String() string {
	switch f {
	case FormatPE:
		return "PE"
	case FormatPKCS7:
		return "PKCS7"
	default:
		return "unknown"
	}
}

// Certificate is the signer certificate of a file together with the
// renderings callers need.
type Certificate struct {
	Format Format
	// Issuer and Subject are the RFC 2253 renderings of the signer's names.
	Issuer  string
	Subject string
	// PublicKey is the upper-case hex encoding of the subjectPublicKey bits.
	PublicKey string
	// ContentType is the eContentType of the SignedData, for Authenticode
	// SpcIndirectDataContent.
	ContentType asn1.ObjectIdentifier

	Leaf          *x509.Certificate
	Intermediates []*x509.Certificate

	signed *signedData
}

// Authenticode reports whether the signature covers a PE image digest.
func (c *Certificate) Authenticode() bool {
	return c.ContentType.Equal(pkiasn1.OIDSpcIndirectDataContent)
}

// Verify checks the signer's signature over the signed content. For a PE
// image the content must be an SpcIndirectDataContent whose digest matches
// the size bytes of r.
func (c *Certificate) Verify(r io.ReaderAt, size int64) error {
	if c.signed == nil {
		return newError(CodeNotSigned, "certificate was not read from a signature")
	}
	if err := c.signed.verify(); err != nil {
		return err
	}
	if c.Format != FormatPE {
		return nil
	}
	if !c.Authenticode() {
		return newError(CodeBadSignature,
			fmt.Sprintf("PE signature content type %s does not cover an image digest", c.ContentType))
	}
	return checkImageDigest(r, size, c.signed.content)
}

// Open reads the signer certificate of the file name in fs.
func Open(fs afero.Fs, name string, maxSignatureSize int64) (*Certificate, error) {
	return open(fs, name, maxSignatureSize, false)
}

// OpenVerified is Open followed by Verify on the same file.
func OpenVerified(fs afero.Fs, name string, maxSignatureSize int64) (*Certificate, error) {
	return open(fs, name, maxSignatureSize, true)
}

func open(fs afero.Fs, name string, maxSignatureSize int64, verify bool) (*Certificate, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, wrapError(CodeIO, "opening "+name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, wrapError(CodeIO, "reading file info of "+name, err)
	}
	if info.IsDir() {
		return nil, newError(CodeUnsupportedFormat, name+" is a directory")
	}
	cert, err := Parse(f, info.Size(), maxSignatureSize)
	if err != nil || !verify {
		return cert, err
	}
	if err := cert.Verify(f, info.Size()); err != nil {
		return nil, err
	}
	return cert, nil
}

// Parse reads the signer certificate from the size bytes of r. A
// maxSignatureSize of zero or less selects DefaultMaxSignatureSize.
func Parse(r io.ReaderAt, size, maxSignatureSize int64) (*Certificate, error) {
	if maxSignatureSize <= 0 {
		maxSignatureSize = DefaultMaxSignatureSize
	}

	var magic [2]byte
	if _, err := r.ReadAt(magic[:], 0); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, newError(CodeUnsupportedFormat, "file too short to carry a signature")
		}
		return nil, wrapError(CodeIO, "reading file header", err)
	}

	var (
		format Format
		block  []byte
		err    error
	)
	switch {
	case string(magic[:]) == dosMagic:
		format = FormatPE
		block, err = peSignatureBlock(r, size, maxSignatureSize)
	case magic[0] == 0x30:
		format = FormatPKCS7
		block, err = readAll(r, size, maxSignatureSize)
	default:
		return nil, newError(CodeUnsupportedFormat, fmt.Sprintf("unrecognized file header % x", magic[:]))
	}
	if err != nil {
		return nil, err
	}

	sd, err := parseSignedData(block)
	if err != nil && !errors.Is(err, ErrNotSigned) {
		if fallback, ferr := parseWithPKCS7(block); ferr == nil {
			sd, err = fallback, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return newCertificate(format, sd)
}

func readAll(r io.ReaderAt, size, limit int64) ([]byte, error) {
	if size > limit {
		return nil, newError(CodeMalformed,
			fmt.Sprintf("signature file of %d bytes exceeds limit of %d", size, limit))
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(r, 0, size), buf); err != nil {
		return nil, wrapError(CodeIO, "reading signature file", err)
	}
	return buf, nil
}

func newCertificate(format Format, sd *signedData) (*Certificate, error) {
	key, err := publicKeyHex(sd.signer)
	if err != nil {
		return nil, err
	}
	return &Certificate{
		Format:        format,
		Issuer:        sd.signer.Issuer.String(),
		Subject:       sd.signer.Subject.String(),
		PublicKey:     key,
		ContentType:   sd.contentType,
		Leaf:          sd.signer,
		Intermediates: sd.intermediates(),
		signed:        sd,
	}, nil
}

// publicKeyHex renders the subjectPublicKey BIT STRING of cert. For RSA keys
// this is the DER RSAPublicKey, for EC keys the uncompressed point.
func publicKeyHex(cert *x509.Certificate) (string, error) {
	var spki pkiasn1.SubjectPublicKeyInfo
	if _, err := asn1.Unmarshal(cert.RawSubjectPublicKeyInfo, &spki); err != nil {
		return "", wrapError(CodeMalformed, "parsing SubjectPublicKeyInfo", err)
	}
	return strings.ToUpper(hex.EncodeToString(spki.PublicKey.Bytes)), nil
}
