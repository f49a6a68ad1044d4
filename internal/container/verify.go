package container

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	pkiasn1 "github.com/mdean75/sigident/internal/asn1"
)

const setTagByte = 0x31

// verifySigner checks that signer produced si over content. With signed
// attributes present the content-type and message-digest attributes must
// match and the signature covers the attributes; otherwise it covers the
// content digest.
func verifySigner(si pkiasn1.SignerInfo, signer *x509.Certificate, content []byte, contentType asn1.ObjectIdentifier) error {
	h, err := hashFromOID(si.DigestAlgorithm.Algorithm)
	if err != nil {
		return err
	}
	contentDigest := sum(h, content)

	if len(si.SignedAttrs.FullBytes) == 0 {
		return verifySignature(signer, si, h, contentDigest, content)
	}

	// The wire form uses IMPLICIT [0]; the signature covers the SET form.
	setBytes := retagAsSet(si.SignedAttrs.FullBytes)
	if err := validateSignedAttrs(setBytes, contentDigest, contentType); err != nil {
		return err
	}
	return verifySignature(signer, si, h, sum(h, setBytes), setBytes)
}

func retagAsSet(implicit0Bytes []byte) []byte {
	out := make([]byte, len(implicit0Bytes))
	copy(out, implicit0Bytes)
	out[0] = setTagByte
	return out
}

// validateSignedAttrs requires a content-type attribute equal to
// eContentType and a message-digest attribute equal to computedDigest.
func validateSignedAttrs(setBytes, computedDigest []byte, eContentType asn1.ObjectIdentifier) error {
	var attrs []pkiasn1.Attribute
	if _, err := asn1.UnmarshalWithParams(setBytes, &attrs, "set"); err != nil {
		return wrapError(CodeMalformed, "parsing signed attributes", err)
	}

	var foundCT, foundMD bool
	for _, attr := range attrs {
		switch {
		case attr.Type.Equal(pkiasn1.OIDAttributeContentType):
			var oid asn1.ObjectIdentifier
			if _, err := asn1.Unmarshal(attr.Values.Bytes, &oid); err != nil {
				return wrapError(CodeMalformed, "parsing content-type attribute", err)
			}
			if !oid.Equal(eContentType) {
				return newError(CodeBadSignature,
					fmt.Sprintf("content-type attribute %s does not match eContentType %s", oid, eContentType))
			}
			foundCT = true

		case attr.Type.Equal(pkiasn1.OIDAttributeMessageDigest):
			var messageDigest []byte
			if _, err := asn1.Unmarshal(attr.Values.Bytes, &messageDigest); err != nil {
				return wrapError(CodeMalformed, "parsing message-digest attribute", err)
			}
			if !bytes.Equal(messageDigest, computedDigest) {
				return newError(CodeBadSignature, "message-digest attribute does not match the signed content")
			}
			foundMD = true
		}
	}

	if !foundCT {
		return newError(CodeBadSignature, "content-type signed attribute is missing")
	}
	if !foundMD {
		return newError(CodeBadSignature, "message-digest signed attribute is missing")
	}
	return nil
}

// verifySignature checks si.Signature with the signer's public key. digest is
// the hash of message; Ed25519 signs message itself.
func verifySignature(cert *x509.Certificate, si pkiasn1.SignerInfo, h crypto.Hash, digest, message []byte) error {
	sigAlg := si.SignatureAlgorithm.Algorithm

	switch {
	case isRSAPKCS1OID(sigAlg):
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return newError(CodeBadSignature, "signature algorithm is RSA but the signer key is not")
		}
		if err := rsa.VerifyPKCS1v15(pub, h, digest, si.Signature); err != nil {
			return wrapError(CodeBadSignature, "RSA PKCS #1 v1.5 signature verification failed", err)
		}

	case sigAlg.Equal(pkiasn1.OIDSignatureAlgorithmRSAPSS):
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return newError(CodeBadSignature, "signature algorithm is RSA-PSS but the signer key is not RSA")
		}
		opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: h}
		if err := rsa.VerifyPSS(pub, h, digest, si.Signature, opts); err != nil {
			return wrapError(CodeBadSignature, "RSA-PSS signature verification failed", err)
		}

	case isECDSAOID(sigAlg):
		pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
		if !ok {
			return newError(CodeBadSignature, "signature algorithm is ECDSA but the signer key is not")
		}
		if !ecdsa.VerifyASN1(pub, digest, si.Signature) {
			return newError(CodeBadSignature, "ECDSA signature verification failed")
		}

	case sigAlg.Equal(pkiasn1.OIDSignatureAlgorithmEd25519):
		pub, ok := cert.PublicKey.(ed25519.PublicKey)
		if !ok {
			return newError(CodeBadSignature, "signature algorithm is Ed25519 but the signer key is not")
		}
		if !ed25519.Verify(pub, message, si.Signature) {
			return newError(CodeBadSignature, "Ed25519 signature verification failed")
		}

	default:
		return newError(CodeUnsupportedAlgorithm,
			fmt.Sprintf("signature algorithm %s is not supported", sigAlg))
	}
	return nil
}

func isRSAPKCS1OID(oid asn1.ObjectIdentifier) bool {
	return oid.Equal(pkiasn1.OIDSignatureAlgorithmRSA) ||
		oid.Equal(pkiasn1.OIDSignatureAlgorithmSHA1WithRSA) ||
		oid.Equal(pkiasn1.OIDSignatureAlgorithmSHA256WithRSA) ||
		oid.Equal(pkiasn1.OIDSignatureAlgorithmSHA384WithRSA) ||
		oid.Equal(pkiasn1.OIDSignatureAlgorithmSHA512WithRSA)
}

// isECDSAOID accepts the ecdsa-with-SHA* OIDs and the bare id-ecPublicKey
// some signers put in signatureAlgorithm.
func isECDSAOID(oid asn1.ObjectIdentifier) bool {
	return oid.Equal(pkiasn1.OIDSignatureAlgorithmECPublicKey) ||
		oid.Equal(pkiasn1.OIDSignatureAlgorithmECDSAWithSHA1) ||
		oid.Equal(pkiasn1.OIDSignatureAlgorithmECDSAWithSHA256) ||
		oid.Equal(pkiasn1.OIDSignatureAlgorithmECDSAWithSHA384) ||
		oid.Equal(pkiasn1.OIDSignatureAlgorithmECDSAWithSHA512)
}
