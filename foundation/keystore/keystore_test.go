package keystore_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"testing/fstest"

	"github.com/jcpaschoal/spi-agenda/foundation/keystore"
	"github.com/stretchr/testify/require"
)

func genPEM(t *testing.T) []byte {
	t.Helper()

	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(pk),
	})
}

func TestLoadByFileSystem(t *testing.T) {
	fsys := fstest.MapFS{
		"keys/54bb2165-71e1-41a6-af3e-7da4a0e1e2c1.pem": {Data: genPEM(t)},
		"keys/README.md": {Data: []byte("ignored")},
	}

	ks := keystore.New()

	n, err := ks.LoadByFileSystem(fsys)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	priv, err := ks.PrivateKey("54bb2165-71e1-41a6-af3e-7da4a0e1e2c1")
	require.NoError(t, err)
	require.Contains(t, priv, "PRIVATE KEY")

	pub, err := ks.PublicKey("54bb2165-71e1-41a6-af3e-7da4a0e1e2c1")
	require.NoError(t, err)
	require.Contains(t, pub, "PUBLIC KEY")

	_, err = ks.PublicKey("unknown")
	require.Error(t, err)
}

func TestLoadByFileSystemBadPEM(t *testing.T) {
	fsys := fstest.MapFS{
		"bad.pem": {Data: []byte("not a key")},
	}

	_, err := keystore.New().LoadByFileSystem(fsys)
	require.Error(t, err)
}
