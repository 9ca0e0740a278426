package pinning

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/houzhh15/sdp-peercert/certinfo"
)

// mockLogger 模拟日志记录器
type mockLogger struct{}

func (l *mockLogger) Info(msg string, fields ...interface{})  {}
func (l *mockLogger) Warn(msg string, fields ...interface{})  {}
func (l *mockLogger) Error(msg string, fields ...interface{}) {}
func (l *mockLogger) Debug(msg string, fields ...interface{}) {}

// setupStore 在临时目录中创建登记库
func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "pins.db"), &Options{Logger: &mockLogger{}})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// peerSession 生成自签名证书并包装为已完成握手的会话
func peerSession(t *testing.T, cn string, serial int64, notAfter time.Time) certinfo.Session {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: cn, Organization: []string{"Example Org"}},
		NotBefore:    notAfter.Add(-48 * time.Hour),
		NotAfter:     notAfter,
		DNSNames:     []string{cn},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return certinfo.StateSession(&tls.ConnectionState{
		HandshakeComplete: true,
		PeerCertificates:  []*x509.Certificate{cert},
	})
}

func TestStore_PinSessionAndVerify(t *testing.T) {
	store := setupStore(t)
	sess := peerSession(t, "client.example.com", 7, time.Now().Add(24*time.Hour))

	pin, err := store.PinSession("client-001", sess)
	require.NoError(t, err)
	assert.Equal(t, "client-001", pin.ClientID)
	assert.Equal(t, "client.example.com", pin.SubjectCN)
	assert.Equal(t, "7", pin.Serial)
	assert.Equal(t, []string{"DNS:client.example.com"}, pin.AltNames)
	assert.Equal(t, StatusActive, pin.Status)
	assert.Contains(t, pin.Fingerprint, "sha256:")

	verified, err := store.Verify(sess)
	require.NoError(t, err)
	assert.Equal(t, pin.Fingerprint, verified.Fingerprint)

	_, err = store.PinSession("client-002", sess)
	assert.ErrorIs(t, err, ErrAlreadyPinned)
}

func TestStore_VerifyNotPinned(t *testing.T) {
	store := setupStore(t)
	sess := peerSession(t, "stranger", 9, time.Now().Add(time.Hour))

	_, err := store.Verify(sess)
	assert.ErrorIs(t, err, ErrNotPinned)
}

func TestStore_VerifyNotConnected(t *testing.T) {
	store := setupStore(t)

	_, err := store.Verify(certinfo.StateSession(nil))
	assert.ErrorIs(t, err, certinfo.ErrNotConnected)
}

func TestStore_Revoke(t *testing.T) {
	store := setupStore(t)
	sess := peerSession(t, "revoked.example.com", 11, time.Now().Add(time.Hour))

	pin, err := store.PinSession("client-003", sess)
	require.NoError(t, err)

	require.NoError(t, store.Revoke(pin.Fingerprint, "key compromise"))

	got, err := store.Verify(sess)
	assert.ErrorIs(t, err, ErrRevoked)
	require.NotNil(t, got)
	assert.Equal(t, "key compromise", got.RevokeReason)
	assert.NotNil(t, got.RevokedAt)

	assert.ErrorIs(t, store.Revoke("sha256:missing", "x"), ErrNotPinned)
}

func TestStore_ExpiredAndCleanExpired(t *testing.T) {
	store := setupStore(t)
	notAfter := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	sess := peerSession(t, "short.example.com", 13, notAfter)

	pin, err := store.PinSession("client-004", sess)
	require.NoError(t, err)

	store.now = func() time.Time { return notAfter.Add(time.Minute) }

	_, err = store.Verify(sess)
	assert.ErrorIs(t, err, ErrExpired)

	n, err := store.CleanExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.Lookup(pin.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
}

func TestStore_UnpinAndList(t *testing.T) {
	store := setupStore(t)

	var fingerprints []string
	for i := 0; i < 3; i++ {
		sess := peerSession(t, "host.example.com", int64(100+i), time.Now().Add(time.Hour))
		pin, err := store.PinSession("client-list", sess)
		require.NoError(t, err)
		fingerprints = append(fingerprints, pin.Fingerprint)
	}

	pins, total, err := store.List(1, 2, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, pins, 2)

	require.NoError(t, store.Revoke(fingerprints[0], "rotated"))
	revoked, total, err := store.List(1, 10, StatusRevoked)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, fingerprints[0], revoked[0].Fingerprint)

	require.NoError(t, store.Unpin(fingerprints[1]))
	_, err = store.Lookup(fingerprints[1])
	assert.ErrorIs(t, err, ErrNotPinned)
	assert.ErrorIs(t, store.Unpin(fingerprints[1]), ErrNotPinned)
}

func TestStore_AltNamesWithComma(t *testing.T) {
	store := setupStore(t)

	info := &certinfo.CertificateInfo{
		Version:   3,
		Subject:   certinfo.Entity{CommonName: "workload"},
		AltNames:  []certinfo.AltName{{Kind: certinfo.AltNameURI, Name: "spiffe://example.org/a,b"}},
		NotBefore: "2024-01-01T00:00:00Z",
		NotAfter:  "2999-01-01T00:00:00Z",
		Serial:    "0a",
	}
	_, err := store.Pin("workload", info, "sha256:0a0b")
	require.NoError(t, err)

	pin, err := store.Lookup("sha256:0a0b")
	require.NoError(t, err)
	assert.Equal(t, []string{"URI:spiffe://example.org/a,b"}, pin.AltNames)
}

func TestStore_PinValidation(t *testing.T) {
	store := setupStore(t)

	_, err := store.Pin("c", nil, "sha256:00")
	assert.Error(t, err)

	_, err = store.Pin("c", &certinfo.CertificateInfo{NotBefore: "2024-01-01T00:00:00Z", NotAfter: "2025-01-01T00:00:00Z"}, "")
	assert.Error(t, err)

	_, err = store.Pin("c", &certinfo.CertificateInfo{NotBefore: "bad", NotAfter: "2025-01-01T00:00:00Z"}, "sha256:00")
	assert.Error(t, err)
}

func TestNewStore_Options(t *testing.T) {
	_, err := NewStore(nil, nil)
	assert.Error(t, err)

	_, err = Open("", nil)
	assert.Error(t, err)

	_, err = Open(filepath.Join(t.TempDir(), "pins.db"), &Options{Algorithm: "md5"})
	assert.Error(t, err)

	store, err := Open(filepath.Join(t.TempDir(), "pins.db"), &Options{Algorithm: "SHA1"})
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, certinfo.AlgorithmSHA1, store.Algorithm())

	pin, err := store.PinSession("c", peerSession(t, "sha1.example.com", 5, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Len(t, pin.Fingerprint, len("sha1:")+40)
}
