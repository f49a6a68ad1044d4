//go:build !windows

package sigident

// defaultTrustEngine checks chains with crypto/x509 against the roots named
// in the configuration, or the system roots.
func defaultTrustEngine(e *Extractor) (TrustEngine, error) {
	opts := []ChainOption{
		WithChainFS(e.fs),
		WithChainMaxSignatureSize(e.maxSignatureSize),
	}
	if e.trustRoots != "" {
		pool, err := LoadTrustRoots(e.fs, e.trustRoots)
		if err != nil {
			return nil, wrapError(CodeInvalidConfiguration, "loading trust roots", err)
		}
		opts = append(opts, WithTrustRoots(pool))
	}
	return NewChainEngine(opts...), nil
}
