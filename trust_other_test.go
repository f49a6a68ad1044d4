//go:build !windows

package sigident

import (
	"encoding/pem"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdean75/sigident/config"
	"github.com/mdean75/sigident/logger"
)

func TestDefaultTrustEngine_ConfiguredRoots(t *testing.T) {
	f := newFixture(t)
	bundle := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: f.root.Cert.Raw})
	require.NoError(t, afero.WriteFile(f.fs, "/etc/sigident/roots.pem", bundle, 0o644))

	cfg := config.Default()
	cfg.TrustRoots = "/etc/sigident/roots.pem"

	e, err := New(WithFS(f.fs), WithConfig(cfg), WithLogger(logger.Nil))
	require.NoError(t, err)
	require.IsType(t, &ChainEngine{}, e.engine)

	id := e.Extract(signedPath)
	assert.True(t, id.Trusted)
	assert.Equal(t, "Acme, Inc.", id.SubjectOrganization)
}

func TestDefaultTrustEngine_MissingRoots(t *testing.T) {
	cfg := config.Default()
	cfg.TrustRoots = "/etc/sigident/missing.pem"

	_, err := New(WithFS(afero.NewMemMapFs()), WithConfig(cfg), WithLogger(logger.Nil))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.ErrorContains(t, err, "loading trust roots")
}
