// Package pkitest builds certificates, PKCS #7 signatures and signed PE
// images for tests.
package pkitest

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"debug/pe"
	"encoding/asn1"
	"encoding/binary"
	"math/big"
	"testing"
	"time"

	ietfcms "github.com/github/smimesign/ietf-cms"
	"github.com/stretchr/testify/require"
	"go.mozilla.org/pkcs7"

	pkiasn1 "github.com/mdean75/sigident/internal/asn1"
)

// KeyPair is a certificate and its private key.
type KeyPair struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

// Option adjusts a certificate template before it is signed.
type Option func(*x509.Certificate)

// WithExtKeyUsage replaces the extended key usages of an issued certificate.
func WithExtKeyUsage(usage ...x509.ExtKeyUsage) Option {
	return func(c *x509.Certificate) { c.ExtKeyUsage = usage }
}

// WithValidity sets the validity window.
func WithValidity(notBefore, notAfter time.Time) Option {
	return func(c *x509.Certificate) {
		c.NotBefore = notBefore
		c.NotAfter = notAfter
	}
}

// WithSubjectKeyID sets the subject key identifier.
func WithSubjectKeyID(id []byte) Option {
	return func(c *x509.Certificate) { c.SubjectKeyId = id }
}

// NewRoot creates a self-signed CA.
func NewRoot(t testing.TB, subject pkix.Name) *KeyPair {
	t.Helper()
	key := newKey(t)
	tmpl := &x509.Certificate{
		SerialNumber:          serial(t),
		Subject:               subject,
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	return &KeyPair{Cert: create(t, tmpl, tmpl, key.Public(), key), Key: key}
}

// Issue creates a code-signing certificate for subject signed by kp.
func (kp *KeyPair) Issue(t testing.TB, subject pkix.Name, opts ...Option) *KeyPair {
	t.Helper()
	key := newKey(t)
	tmpl := &x509.Certificate{
		SerialNumber:          serial(t),
		Subject:               subject,
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
		BasicConstraintsValid: true,
		SubjectKeyId:          []byte{1, 2, 3, 4, 5},
	}
	for _, opt := range opts {
		opt(tmpl)
	}
	return &KeyPair{Cert: create(t, tmpl, kp.Cert, key.Public(), kp.Key), Key: key}
}

// Pool returns a pool holding the given certificates.
func Pool(certs ...*x509.Certificate) *x509.CertPool {
	pool := x509.NewCertPool()
	for _, c := range certs {
		pool.AddCert(c)
	}
	return pool
}

// SignPKCS7 returns a DER PKCS #7 SignedData over a placeholder image digest,
// signed by signer with SHA-256 and carrying extra as additional certificates.
func SignPKCS7(t testing.TB, signer *KeyPair, extra ...*x509.Certificate) []byte {
	t.Helper()
	sd, err := pkcs7.NewSignedData([]byte("placeholder image digest"))
	require.NoError(t, err)
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	require.NoError(t, sd.AddSigner(signer.Cert, signer.Key, pkcs7.SignerInfoConfig{}))
	for _, c := range extra {
		sd.AddCertificate(c)
	}
	der, err := sd.Finish()
	require.NoError(t, err)
	return der
}

// SignPKCS7UnknownSerial is SignPKCS7 with a signer serial number that
// matches none of the certificates carried.
func SignPKCS7UnknownSerial(t testing.TB, signer *KeyPair) []byte {
	t.Helper()
	sd, err := pkcs7.NewSignedData([]byte("placeholder image digest"))
	require.NoError(t, err)
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	require.NoError(t, sd.AddSigner(signer.Cert, signer.Key, pkcs7.SignerInfoConfig{}))
	sid := &sd.GetSignedData().SignerInfos[0].IssuerAndSerialNumber
	sid.SerialNumber = new(big.Int).Add(signer.Cert.SerialNumber, big.NewInt(1))
	der, err := sd.Finish()
	require.NoError(t, err)
	return der
}

// SignAuthenticode returns a DER PKCS #7 SignedData whose content is an
// SpcIndirectDataContent over the SHA-256 image digest. The signature is made
// with key and attributed to cert; key need not belong to cert.
func SignAuthenticode(t testing.TB, cert *x509.Certificate, key crypto.PrivateKey, digest []byte, extra ...*x509.Certificate) []byte {
	t.Helper()
	imageData, err := asn1.Marshal(struct{ Flags asn1.BitString }{})
	require.NoError(t, err)
	spc, err := asn1.Marshal(pkiasn1.SpcIndirectDataContent{
		Data: pkiasn1.SpcAttributeTypeAndOptionalValue{
			Type:  pkiasn1.OIDSpcPEImageData,
			Value: asn1.RawValue{FullBytes: imageData},
		},
		MessageDigest: pkiasn1.DigestInfo{
			DigestAlgorithm: pkix.AlgorithmIdentifier{Algorithm: pkiasn1.OIDDigestAlgorithmSHA256},
			Digest:          digest,
		},
	})
	require.NoError(t, err)

	// The message digest covers the SEQUENCE contents only.
	var value asn1.RawValue
	_, err = asn1.Unmarshal(spc, &value)
	require.NoError(t, err)
	sd, err := pkcs7.NewSignedData(value.Bytes)
	require.NoError(t, err)
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	ci := &sd.GetSignedData().ContentInfo
	ci.ContentType = pkiasn1.OIDSpcIndirectDataContent
	ci.Content = asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: spc}

	require.NoError(t, sd.AddSigner(cert, key, pkcs7.SignerInfoConfig{}))
	for _, c := range extra {
		sd.AddCertificate(c)
	}
	der, err := sd.Finish()
	require.NoError(t, err)
	return der
}

// SignPE returns a PE image carrying a valid Authenticode signature by signer.
func SignPE(t testing.TB, signer *KeyPair, extra ...*x509.Certificate) []byte {
	t.Helper()
	return SignPEWithKey(t, signer.Cert, signer.Key, extra...)
}

// SignPEWithKey is SignPE with the signature made by key on behalf of cert.
func SignPEWithKey(t testing.TB, cert *x509.Certificate, key crypto.PrivateKey, extra ...*x509.Certificate) []byte {
	t.Helper()
	return SignedPE(SignAuthenticode(t, cert, key, ImageDigest(PE(nil)), extra...))
}

// Header offsets of the images built by PE.
const (
	optionalHeaderOffset = 64 + 4 + 20
	checksumOffset       = optionalHeaderOffset + 64
	securityEntryOffset  = optionalHeaderOffset + 112 + pe.IMAGE_DIRECTORY_ENTRY_SECURITY*8
)

// ImageDigest returns the SHA-256 Authenticode digest of an unsigned image
// built by PE, leaving out the CheckSum field and the security directory
// entry.
func ImageDigest(image []byte) []byte {
	h := sha256.New()
	h.Write(image[:checksumOffset])
	h.Write(image[checksumOffset+4 : securityEntryOffset])
	h.Write(image[securityEntryOffset+8:])
	return h.Sum(nil)
}

// SignDetached returns a detached CMS signature over content, as written to a
// .p7s file.
func SignDetached(t testing.TB, signer *KeyPair, content []byte, extra ...*x509.Certificate) []byte {
	t.Helper()
	chain := append([]*x509.Certificate{signer.Cert}, extra...)
	der, err := ietfcms.SignDetached(content, chain, signer.Key)
	require.NoError(t, err)
	return der
}

// WIN_CERTIFICATE certificate types.
const (
	CertTypeX509           uint16 = 0x0001
	CertTypePKCSSignedData uint16 = 0x0002
)

// WinCertificate wraps payload in a WIN_CERTIFICATE entry padded to eight
// bytes.
func WinCertificate(certType uint16, payload []byte) []byte {
	length := 8 + len(payload)
	b := make([]byte, (length+7)&^7)
	binary.LittleEndian.PutUint32(b, uint32(length))
	binary.LittleEndian.PutUint16(b[4:], 0x0200)
	binary.LittleEndian.PutUint16(b[6:], certType)
	copy(b[8:], payload)
	return b
}

// SignedPE returns a PE32+ image whose certificate table holds sig.
func SignedPE(sig []byte) []byte {
	return PE(WinCertificate(CertTypePKCSSignedData, sig))
}

// PE returns a section-less PE32+ image with table as its attribute
// certificate table. An empty table leaves the security directory unset.
func PE(table []byte) []byte {
	var buf bytes.Buffer
	var dos [64]byte
	copy(dos[:], "MZ")
	binary.LittleEndian.PutUint32(dos[0x3c:], uint32(len(dos)))
	buf.Write(dos[:])
	buf.WriteString("PE\x00\x00")

	oh := pe.OptionalHeader64{
		Magic:               0x20b,
		SectionAlignment:    0x1000,
		FileAlignment:       0x200,
		Subsystem:           pe.IMAGE_SUBSYSTEM_WINDOWS_CUI,
		NumberOfRvaAndSizes: 16,
	}
	fh := pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_AMD64,
		SizeOfOptionalHeader: uint16(binary.Size(oh)),
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_LARGE_ADDRESS_AWARE,
	}
	if len(table) > 0 {
		offset := buf.Len() + binary.Size(fh) + binary.Size(oh)
		oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_SECURITY] = pe.DataDirectory{
			VirtualAddress: uint32(offset),
			Size:           uint32(len(table)),
		}
	}
	// Writes to a bytes.Buffer cannot fail.
	_ = binary.Write(&buf, binary.LittleEndian, fh)
	_ = binary.Write(&buf, binary.LittleEndian, oh)
	buf.Write(table)
	return buf.Bytes()
}

func newKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func serial(t testing.TB) *big.Int {
	t.Helper()
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	require.NoError(t, err)
	return n
}

func create(t testing.TB, tmpl, parent *x509.Certificate, pub any, signer *ecdsa.PrivateKey) *x509.Certificate {
	t.Helper()
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, pub, signer)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}
