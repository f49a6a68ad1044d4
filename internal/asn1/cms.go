package pkiasn1

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
)

// ContentInfo is the outer PKCS #7 / CMS wrapper (RFC 5652, section 3). An
// Authenticode signature block is a ContentInfo whose ContentType is
// OIDSignedData.
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	// Content holds the inner structure inside its explicit [0] tag. Bytes is
	// the full encoding of the inner SEQUENCE.
	Content asn1.RawValue `asn1:"explicit,tag:0"`
}

// SignedData is the SignedData content type (RFC 5652, section 5.1).
//
// Only the parts needed to identify the signer are decoded. Authenticode puts
// an SpcIndirectDataContent in EncapContentInfo; it is kept raw.
type SignedData struct {
	Version          int
	DigestAlgorithms []pkix.AlgorithmIdentifier `asn1:"set"`
	EncapContentInfo EncapsulatedContentInfo
	// Certificates is the IMPLICIT [0] CertificateSet. Entries that are not
	// plain X.509 certificates are skipped by the parser.
	Certificates []asn1.RawValue `asn1:"optional,tag:0"`
	CRLs         []asn1.RawValue `asn1:"optional,tag:1"`
	SignerInfos  []SignerInfo    `asn1:"set"`
}

// EncapsulatedContentInfo holds the signed content type and, when attached,
// the content itself (RFC 5652, section 5.2).
type EncapsulatedContentInfo struct {
	EContentType asn1.ObjectIdentifier
	EContent     asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

// SignerInfo is the per-signer structure (RFC 5652, section 5.3).
type SignerInfo struct {
	// Version is 1 when SID is an IssuerAndSerialNumber and 3 when it is a
	// SubjectKeyIdentifier.
	Version int
	// SID is the SignerIdentifier CHOICE, kept raw so the tag decides which
	// alternative is present.
	SID                asn1.RawValue
	DigestAlgorithm    pkix.AlgorithmIdentifier
	SignedAttrs        asn1.RawValue `asn1:"optional,tag:0"`
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          []byte
	UnsignedAttrs      asn1.RawValue `asn1:"optional,tag:1"`
}

// IssuerAndSerialNumber identifies a certificate by issuer name and serial
// number (RFC 5652, section 10.2.4).
type IssuerAndSerialNumber struct {
	// Issuer is the DER encoding of the issuer Name; compare it against
	// x509.Certificate.RawIssuer.
	Issuer       asn1.RawValue
	SerialNumber *big.Int
}

// SubjectPublicKeyInfo is the certificate field holding the signer's public
// key (RFC 5280, section 4.1).
type SubjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// Attribute is one entry of a SignerInfo attribute set. Values keeps the SET
// raw; its Bytes field holds the encoded values back to back.
type Attribute struct {
	Type   asn1.ObjectIdentifier
	Values asn1.RawValue `asn1:"set"`
}

// SpcIndirectDataContent is the eContent of an Authenticode signature. Data
// says what was hashed and MessageDigest holds the hash.
type SpcIndirectDataContent struct {
	Data          SpcAttributeTypeAndOptionalValue
	MessageDigest DigestInfo
}

type SpcAttributeTypeAndOptionalValue struct {
	Type  asn1.ObjectIdentifier
	Value asn1.RawValue `asn1:"optional"`
}

// DigestInfo pairs a digest with its algorithm (RFC 8017, section 9.2).
type DigestInfo struct {
	DigestAlgorithm pkix.AlgorithmIdentifier
	Digest          []byte
}
