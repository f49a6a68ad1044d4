package container

import (
	"crypto"
	// Register the digests signers may name.
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/asn1"
	"fmt"

	pkiasn1 "github.com/mdean75/sigident/internal/asn1"
)

// digestNames maps the digest algorithm OIDs seen in Authenticode signatures
// to their conventional names.
var digestNames = map[string]string{
	pkiasn1.OIDDigestAlgorithmMD5.String():    "MD5",
	pkiasn1.OIDDigestAlgorithmSHA1.String():   "SHA1",
	pkiasn1.OIDDigestAlgorithmSHA256.String(): "SHA256",
	pkiasn1.OIDDigestAlgorithmSHA384.String(): "SHA384",
	pkiasn1.OIDDigestAlgorithmSHA512.String(): "SHA512",
}

// oidToHash is the allow-list of digests the verifier computes. MD5 is
// recognized by name only.
var oidToHash = map[string]crypto.Hash{
	pkiasn1.OIDDigestAlgorithmSHA1.String():   crypto.SHA1,
	pkiasn1.OIDDigestAlgorithmSHA256.String(): crypto.SHA256,
	pkiasn1.OIDDigestAlgorithmSHA384.String(): crypto.SHA384,
	pkiasn1.OIDDigestAlgorithmSHA512.String(): crypto.SHA512,
}

// digestName returns the name of the digest algorithm identified by oid, or
// the dotted OID when it is not a known digest.
func digestName(oid asn1.ObjectIdentifier) string {
	if len(oid) == 0 {
		return ""
	}
	if name, ok := digestNames[oid.String()]; ok {
		return name
	}
	return oid.String()
}

// hashFromOID returns the crypto.Hash for the given digest algorithm OID.
func hashFromOID(oid asn1.ObjectIdentifier) (crypto.Hash, error) {
	h, ok := oidToHash[oid.String()]
	if !ok {
		return 0, newError(CodeUnsupportedAlgorithm,
			fmt.Sprintf("digest algorithm %s is not supported", digestName(oid)))
	}
	return h, nil
}

func sum(h crypto.Hash, data []byte) []byte {
	hh := h.New()
	hh.Write(data)
	return hh.Sum(nil)
}
