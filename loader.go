package sigident

import (
	"errors"
	"io/fs"

	"github.com/mdean75/sigident/internal/container"
)

// load reads the signer certificate of path. A missing path fails with
// LoadNotFound and leaves the negative cache alone. Any other failure is
// LoadNoCertificate and is logged once per path per cache window.
func (e *Extractor) load(path string) (*container.Certificate, LoadFailure) {
	if _, err := e.fs.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, LoadNotFound
	}

	cert, err := container.Open(e.fs, path, e.maxSignatureSize)
	if err != nil {
		if e.cache.Observe(path) {
			e.log.Warning("Can not find certificate from file %s: %v", path, err)
		}
		return nil, LoadNoCertificate
	}
	return cert, 0
}
