package container

import (
	"bytes"
	"encoding/asn1"
	"fmt"
	"io"

	pkiasn1 "github.com/mdean75/sigident/internal/asn1"
)

// checkImageDigest compares the digest in the SpcIndirectDataContent value
// content with the Authenticode digest of the PE image in r.
func checkImageDigest(r io.ReaderAt, size int64, content []byte) error {
	der, err := asn1.Marshal(asn1.RawValue{Tag: asn1.TagSequence, IsCompound: true, Bytes: content})
	if err != nil {
		return wrapError(CodeMalformed, "encoding SpcIndirectDataContent", err)
	}
	var spc pkiasn1.SpcIndirectDataContent
	if rest, err := asn1.Unmarshal(der, &spc); err != nil {
		return wrapError(CodeMalformed, "parsing SpcIndirectDataContent", err)
	} else if len(rest) > 0 {
		return newError(CodeMalformed, "trailing data after SpcIndirectDataContent")
	}
	if !spc.Data.Type.Equal(pkiasn1.OIDSpcPEImageData) {
		return newError(CodeBadSignature,
			fmt.Sprintf("signed data type %s is not a PE image", spc.Data.Type))
	}

	alg := spc.MessageDigest.DigestAlgorithm.Algorithm
	h, err := hashFromOID(alg)
	if err != nil {
		return err
	}
	l, err := readPELayout(r, size)
	if err != nil {
		return err
	}
	got, err := imageDigest(r, size, l, h)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, spc.MessageDigest.Digest) {
		return newError(CodeBadSignature,
			fmt.Sprintf("%s digest of the image does not match the signed digest", digestName(alg)))
	}
	return nil
}
