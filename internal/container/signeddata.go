package container

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	"go.mozilla.org/pkcs7"

	"github.com/mdean75/sigident/ber"
	pkiasn1 "github.com/mdean75/sigident/internal/asn1"
)

// signedData is the part of a SignedData block needed to identify and verify
// the signer.
type signedData struct {
	contentType asn1.ObjectIdentifier
	// content is the eContent value; for Authenticode the encoded
	// SpcIndirectDataContent without its outer tag and length.
	content  []byte
	detached bool
	certs    []*x509.Certificate
	signer   *x509.Certificate

	signerInfo pkiasn1.SignerInfo
	// p7 is set when the block was read by the pkcs7 fallback.
	p7 *pkcs7.PKCS7
}

// parseSignedData decodes a PKCS #7 ContentInfo carrying SignedData. The block
// may be BER encoded and may be followed by alignment padding.
func parseSignedData(block []byte) (*signedData, error) {
	der, _, err := ber.NormalizeBytes(block)
	if err != nil {
		return nil, wrapError(CodeMalformed, "converting signature from BER", err)
	}

	var ci pkiasn1.ContentInfo
	if _, err := asn1.Unmarshal(der, &ci); err != nil {
		return nil, wrapError(CodeMalformed, "parsing ContentInfo", err)
	}
	if !ci.ContentType.Equal(pkiasn1.OIDSignedData) {
		return nil, newError(CodeMalformed,
			fmt.Sprintf("content type %s is not SignedData", ci.ContentType))
	}

	var sd pkiasn1.SignedData
	if _, err := asn1.Unmarshal(ci.Content.Bytes, &sd); err != nil {
		return nil, wrapError(CodeMalformed, "parsing SignedData", err)
	}

	content, detached, err := encapsulatedContent(sd.EncapContentInfo)
	if err != nil {
		return nil, err
	}
	p := &signedData{
		contentType: sd.EncapContentInfo.EContentType,
		content:     content,
		detached:    detached,
		certs:       parseCertificates(sd.Certificates),
	}
	if len(p.certs) == 0 {
		return nil, newError(CodeNotSigned, "SignedData carries no certificates")
	}
	if len(sd.SignerInfos) == 0 {
		return nil, newError(CodeNotSigned, "SignedData has no signers")
	}

	si := sd.SignerInfos[0]
	p.signerInfo = si
	p.signer = p.findSignerCert(si)
	if p.signer == nil {
		return nil, newError(CodeMalformed, "no certificate in the set matches the signer identifier")
	}
	return p, nil
}

// encapsulatedContent returns the value of eContent. EContent is the explicit
// [0] wrapper; its Bytes hold the inner OCTET STRING or SEQUENCE.
func encapsulatedContent(eci pkiasn1.EncapsulatedContentInfo) ([]byte, bool, error) {
	if len(eci.EContent.FullBytes) == 0 {
		return nil, true, nil
	}
	var inner asn1.RawValue
	if _, err := asn1.Unmarshal(eci.EContent.Bytes, &inner); err != nil {
		return nil, false, wrapError(CodeMalformed, "parsing eContent", err)
	}
	return inner.Bytes, false, nil
}

// verify checks the signer's signature over the encapsulated content.
func (p *signedData) verify() error {
	if p.detached {
		return newError(CodeNotSigned, "signature is detached; the signed content is not in the file")
	}
	if p.p7 != nil {
		if err := p.p7.Verify(); err != nil {
			return wrapError(CodeBadSignature, "verifying PKCS #7 signature", err)
		}
		return nil
	}
	return verifySigner(p.signerInfo, p.signer, p.content, p.contentType)
}

// parseCertificates parses each entry of the CertificateSet, skipping the
// non-X.509 alternatives.
func parseCertificates(rawCerts []asn1.RawValue) []*x509.Certificate {
	var certs []*x509.Certificate
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw.FullBytes)
		if err != nil {
			continue
		}
		certs = append(certs, cert)
	}
	return certs
}

func (p *signedData) findSignerCert(si pkiasn1.SignerInfo) *x509.Certificate {
	// SID is an untagged SEQUENCE for IssuerAndSerialNumber and [0] for
	// SubjectKeyIdentifier, whatever the SignerInfo version claims.
	if si.SID.Class == asn1.ClassContextSpecific && si.SID.Tag == 0 {
		return p.findCertBySKI(si.SID)
	}
	return p.findCertByIssuerSerial(si.SID)
}

func (p *signedData) findCertByIssuerSerial(sid asn1.RawValue) *x509.Certificate {
	var isn pkiasn1.IssuerAndSerialNumber
	if _, err := asn1.Unmarshal(sid.FullBytes, &isn); err != nil || isn.SerialNumber == nil {
		return nil
	}
	for _, cert := range p.certs {
		if cert.SerialNumber.Cmp(isn.SerialNumber) == 0 &&
			bytes.Equal(cert.RawIssuer, isn.Issuer.FullBytes) {
			return cert
		}
	}
	return nil
}

func (p *signedData) findCertBySKI(sid asn1.RawValue) *x509.Certificate {
	// sid is [0] IMPLICIT OCTET STRING.
	var ski []byte
	rest, err := asn1.UnmarshalWithParams(sid.FullBytes, &ski, "tag:0")
	if err != nil || len(rest) > 0 {
		return nil
	}
	for _, cert := range p.certs {
		if bytes.Equal(cert.SubjectKeyId, ski) {
			return cert
		}
	}
	return nil
}

// intermediates returns every certificate in the set other than the signer.
func (p *signedData) intermediates() []*x509.Certificate {
	var out []*x509.Certificate
	for _, cert := range p.certs {
		if cert != p.signer {
			out = append(out, cert)
		}
	}
	return out
}
