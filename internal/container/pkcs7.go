package container

import (
	"encoding/asn1"

	"go.mozilla.org/pkcs7"

	"github.com/mdean75/sigident/ber"
	pkiasn1 "github.com/mdean75/sigident/internal/asn1"
)

// parseWithPKCS7 is the fallback used when parseSignedData rejects a block.
// go.mozilla.org/pkcs7 has its own BER converter and structure definitions,
// which accept some blocks written by older signing tools.
func parseWithPKCS7(block []byte) (*signedData, error) {
	// pkcs7.Parse rejects trailing bytes, so trim the alignment padding first.
	if _, n, err := ber.NormalizeBytes(block); err == nil {
		block = block[:n]
	}
	p7, err := pkcs7.Parse(block)
	if err != nil {
		return nil, wrapError(CodeMalformed, "parsing PKCS #7", err)
	}
	if len(p7.Certificates) == 0 {
		return nil, newError(CodeNotSigned, "PKCS #7 block carries no certificates")
	}
	if len(p7.Signers) == 0 {
		return nil, newError(CodeNotSigned, "PKCS #7 block has no signers")
	}

	signer := p7.GetOnlySigner()
	if signer == nil {
		return nil, newError(CodeMalformed, "PKCS #7 signer certificate not found")
	}

	// The content type is only reachable through the signed attribute.
	contentType := pkiasn1.OIDData
	var attr asn1.ObjectIdentifier
	if err := p7.UnmarshalSignedAttribute(pkiasn1.OIDAttributeContentType, &attr); err == nil {
		contentType = attr
	}

	return &signedData{
		contentType: contentType,
		content:     p7.Content,
		detached:    len(p7.Content) == 0,
		certs:       p7.Certificates,
		signer:      signer,
		p7:          p7,
	}, nil
}
