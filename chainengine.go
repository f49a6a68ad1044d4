package sigident

import (
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/mdean75/sigident/internal/container"
)

// ChainEngine is a portable TrustEngine. It verifies the signer's signature
// and, for PE images, the Authenticode image digest, then checks that the
// signer chains to a trusted root for code signing. Revocation is not
// consulted. Outcomes are reported with the WinVerifyTrust codes closest in
// meaning.
type ChainEngine struct {
	fs               afero.Fs
	roots            *x509.CertPool
	maxSignatureSize int64
	now              func() time.Time
}

// ChainOption configures a ChainEngine.
type ChainOption func(*ChainEngine)

// WithTrustRoots uses pool as the set of trust anchors. A nil pool selects
// the system roots.
func WithTrustRoots(pool *x509.CertPool) ChainOption {
	return func(e *ChainEngine) {
		e.roots = pool
	}
}

// WithChainFS reads files through fs instead of the OS file system.
func WithChainFS(fs afero.Fs) ChainOption {
	return func(e *ChainEngine) {
		e.fs = fs
	}
}

// WithVerifyTime sets the reference time for certificate validity checks.
// Defaults to the time of each Verify call.
func WithVerifyTime(t time.Time) ChainOption {
	return func(e *ChainEngine) {
		e.now = func() time.Time { return t }
	}
}

// WithChainMaxSignatureSize bounds the signature block read from a file.
func WithChainMaxSignatureSize(n int64) ChainOption {
	return func(e *ChainEngine) {
		e.maxSignatureSize = n
	}
}

// NewChainEngine returns a ChainEngine using the system roots unless
// WithTrustRoots is given.
func NewChainEngine(opts ...ChainOption) *ChainEngine {
	e := &ChainEngine{
		fs:               afero.NewOsFs(),
		maxSignatureSize: container.DefaultMaxSignatureSize,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadTrustRoots reads a PEM bundle from fs into a new pool.
func LoadTrustRoots(fs afero.Fs, path string) (*x509.CertPool, error) {
	pem, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}

// Verify implements TrustEngine. It fails only when the file cannot be read.
func (e *ChainEngine) Verify(path string) (uint32, error) {
	cert, err := container.OpenVerified(e.fs, path, e.maxSignatureSize)
	switch {
	case err == nil:
	case errors.Is(err, container.ErrIO):
		return 0, err
	case errors.Is(err, container.ErrUnsupportedFormat):
		return TrustESubjectFormUnknown, nil
	case errors.Is(err, container.ErrBadSignature):
		return TrustEBadDigest, nil
	case errors.Is(err, container.ErrUnsupportedAlgorithm):
		return TrustESubjectNotTrusted, nil
	default:
		return TrustENoSignature, nil
	}

	intermediates := x509.NewCertPool()
	for _, c := range cert.Intermediates {
		intermediates.AddCert(c)
	}
	opts := x509.VerifyOptions{
		Roots:         e.roots,
		Intermediates: intermediates,
		CurrentTime:   e.now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
	}
	if _, err := cert.Leaf.Verify(opts); err != nil {
		return chainErrorCode(err), nil
	}
	return TrustSuccess, nil
}

func chainErrorCode(err error) uint32 {
	var unknown x509.UnknownAuthorityError
	var systemRoots x509.SystemRootsError
	var invalid x509.CertificateInvalidError
	switch {
	case errors.As(err, &unknown), errors.As(err, &systemRoots):
		return CertEUntrustedRoot
	case errors.As(err, &invalid):
		switch invalid.Reason {
		case x509.Expired:
			return CertEExpired
		case x509.IncompatibleUsage:
			return CertEWrongUsage
		}
	}
	return TrustESubjectNotTrusted
}
