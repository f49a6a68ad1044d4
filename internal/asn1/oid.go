// Package pkiasn1 defines the ASN.1 wire structures and object identifiers
// needed to read PKCS #7 SignedData signature blocks, including the
// Authenticode flavour embedded in PE images.
package pkiasn1

import "encoding/asn1"

// Content type OIDs (RFC 5652, section 3).
var (
	// OIDData identifies raw content.
	OIDData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}

	// OIDSignedData identifies the SignedData content type.
	OIDSignedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
)

// Microsoft Authenticode OIDs.
var (
	// OIDSpcIndirectDataContent is the eContentType of an Authenticode
	// signature; the content carries the PE image digest.
	OIDSpcIndirectDataContent = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 4}

	// OIDCatalogList is the eContentType of a Windows security catalog (.cat).
	OIDCatalogList = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 10, 1}

	// OIDSpcPEImageData marks an SpcIndirectDataContent whose digest covers
	// a PE image.
	OIDSpcPEImageData = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 1, 15}
)

// Signed attribute OIDs (RFC 5652, section 11).
var (
	OIDAttributeContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	OIDAttributeMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
)

// Signature algorithm OIDs accepted in SignerInfo.signatureAlgorithm. Signers
// emit either the bare key algorithm or the combined digest-with-key form.
var (
	OIDSignatureAlgorithmRSA           = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	OIDSignatureAlgorithmSHA1WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}
	OIDSignatureAlgorithmSHA256WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	OIDSignatureAlgorithmSHA384WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	OIDSignatureAlgorithmSHA512WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}
	OIDSignatureAlgorithmRSAPSS        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}

	OIDSignatureAlgorithmECPublicKey     = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	OIDSignatureAlgorithmECDSAWithSHA1   = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 1}
	OIDSignatureAlgorithmECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	OIDSignatureAlgorithmECDSAWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	OIDSignatureAlgorithmECDSAWithSHA512 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}

	OIDSignatureAlgorithmEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}
)

// Digest algorithm OIDs. Authenticode still ships SHA-1 and occasionally MD5
// signatures, so both are recognized for reporting purposes.
var (
	OIDDigestAlgorithmMD5    = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 5}
	OIDDigestAlgorithmSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	OIDDigestAlgorithmSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	OIDDigestAlgorithmSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	OIDDigestAlgorithmSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
)
