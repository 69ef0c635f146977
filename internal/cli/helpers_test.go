package cli

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sufield/certkeeper/internal/core/domain"
)

// keystoreFixture is a keystore directory holding one certificate and key.
type keystoreFixture struct {
	dir        string
	thumbprint string
	keyID      string
	key        *rsa.PrivateKey
}

func newKeystoreFixture(t *testing.T) keystoreFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: "cli-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, pem.Encode(&buf, &pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cli-test.pem"), buf.Bytes(), 0o600))

	return keystoreFixture{
		dir:        dir,
		thumbprint: domain.Thumbprint(cert),
		keyID:      domain.KeyID(cert),
		key:        key,
	}
}

// writeConfig writes a configuration loading the fixture as "legacy", plus any
// extra certificate entries.
func (f keystoreFixture) writeConfig(t *testing.T, extra string) string {
	t.Helper()

	content := fmt.Sprintf(`log_level: error
metrics:
  enabled: false
keystore:
  directory: %s
certificates:
  - certificate_name: legacy
    type: local-keystore-source
    thumbprint: %s
%s`, f.dir, f.thumbprint, extra)

	path := filepath.Join(t.TempDir(), "certkeeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// execute runs a fresh command tree and captures its output.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return out.String(), errOut.String(), err
}
