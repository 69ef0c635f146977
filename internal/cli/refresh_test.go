package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const missingCertificate = `  - certificate_name: gone
    type: local-keystore-source
    thumbprint: 0000000000000000000000000000000000000000
`

func TestRefreshCommand(t *testing.T) {
	fixture := newKeystoreFixture(t)

	out, _, err := execute(t, "refresh", "--config", fixture.writeConfig(t, ""))
	require.NoError(t, err)
	assert.Contains(t, out, "legacy: thumbprint "+fixture.thumbprint)
	assert.Contains(t, out, "Loaded 1 certificates")
}

func TestRefreshCommand_JSON(t *testing.T) {
	fixture := newKeystoreFixture(t)

	out, _, err := execute(t, "refresh", "--config", fixture.writeConfig(t, ""), "--format", "json")
	require.NoError(t, err)

	var report refreshReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.AllSucceeded)
	assert.Equal(t, 1, report.Loaded)
	assert.NotEmpty(t, report.CycleID)
	require.Len(t, report.Certificates, 1)
	assert.Equal(t, "legacy", report.Certificates[0].Name)
	assert.Equal(t, fixture.keyID, report.Certificates[0].KeyID)
	assert.True(t, report.Certificates[0].PrivateKey)
}

func TestRefreshCommand_PartialFailure(t *testing.T) {
	fixture := newKeystoreFixture(t)
	path := fixture.writeConfig(t, missingCertificate)

	out, stderr, err := execute(t, "refresh", "--config", path)
	assert.ErrorIs(t, err, ErrSource)
	assert.Contains(t, out, "legacy")
	assert.Contains(t, stderr, "gone (local-keystore-source): not_found")

	_, _, err = execute(t, "refresh", "--config", path, "--allow-partial")
	assert.NoError(t, err)
}

func TestRefreshCommand_MissingConfig(t *testing.T) {
	_, _, err := execute(t, "refresh", "--config", "/nonexistent/certkeeper.yaml")
	assert.ErrorIs(t, err, ErrConfig)
}
