package main

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs a fresh command tree with the given args and returns stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

// startPeer runs a TLS listener presenting a self-signed certificate for cn.
func startPeer(t *testing.T, cn string) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(0x1234),
		Subject:      pkix.Name{CommonName: cn, Country: []string{"DE"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		DNSNames:     []string{cn},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	lis, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { lis.Close() })

	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				conn.SetDeadline(time.Now().Add(5 * time.Second))
				if err := conn.(*tls.Conn).Handshake(); err != nil {
					return
				}
				conn.Read(make([]byte, 1))
			}()
		}
	}()
	return lis.Addr().String()
}

func TestInfoCommand(t *testing.T) {
	addr := startPeer(t, "peer.test")

	out, err := executeCommand(t, "info", addr)
	require.NoError(t, err)

	var doc struct {
		Type        string `json:"type"`
		RemoteAddr  string `json:"remote_addr"`
		Fingerprint string `json:"fingerprint"`
		MatchesHost bool   `json:"matches_host"`
		Certificate struct {
			Version int `json:"version"`
			Subject struct {
				CommonName string `json:"common_name"`
				Country    string `json:"country"`
			} `json:"subject"`
			AltNames []struct {
				Kind string `json:"kind"`
				Name string `json:"name"`
			} `json:"alt_names"`
			Serial string `json:"serial"`
		} `json:"certificate"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	assert.Equal(t, "peer_identity", doc.Type)
	assert.Equal(t, addr, doc.RemoteAddr)
	assert.Equal(t, 2, doc.Certificate.Version)
	assert.Equal(t, "peer.test", doc.Certificate.Subject.CommonName)
	assert.Equal(t, "DE", doc.Certificate.Subject.Country)
	assert.Equal(t, "4660", doc.Certificate.Serial)
	require.Len(t, doc.Certificate.AltNames, 2)
	assert.Equal(t, "DNS", doc.Certificate.AltNames[0].Kind)
	assert.Equal(t, "IPv4", doc.Certificate.AltNames[1].Kind)
	assert.True(t, strings.HasPrefix(doc.Fingerprint, "sha256:"))
	assert.True(t, doc.MatchesHost)
}

func TestInfoCommand_ServerNameMismatch(t *testing.T) {
	addr := startPeer(t, "peer.test")

	out, err := executeCommand(t, "info", addr, "--server-name", "other.test")
	require.NoError(t, err)
	assert.Contains(t, out, `"matches_host": false`)
}

func TestInfoCommand_Unreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	lis.Close()

	_, err = executeCommand(t, "info", addr, "--timeout", "1s")
	assert.Error(t, err)

	_, err = executeCommand(t, "info")
	assert.Error(t, err)
}

func TestFingerprintCommand(t *testing.T) {
	addr := startPeer(t, "peer.test")

	out, err := executeCommand(t, "fingerprint", addr, "--algorithm", "sha1", "--length", "8")
	require.NoError(t, err)
	line := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(line, "sha1:"))
	assert.Len(t, line, len("sha1:")+16)

	full, err := executeCommand(t, "fingerprint", addr)
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(full), len("sha256:")+64)

	long, err := executeCommand(t, "fingerprint", addr, "--algorithm", "SHA1", "--length", "100")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(long), len("sha1:")+40)

	_, err = executeCommand(t, "fingerprint", addr, "--algorithm", "md5")
	assert.Error(t, err)

	_, err = executeCommand(t, "fingerprint", addr, "--length", "-1")
	assert.Error(t, err)
}

func TestPinCommands(t *testing.T) {
	addr := startPeer(t, "peer.test")
	db := filepath.Join(t.TempDir(), "pins.db")

	out, err := executeCommand(t, "pin", "add", addr, "--db", db, "--client-id", "peer-01")
	require.NoError(t, err)

	var pin struct {
		Fingerprint string `json:"fingerprint"`
		ClientID    string `json:"client_id"`
		SubjectCN   string `json:"subject_cn"`
		Status      string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &pin))
	assert.Equal(t, "peer-01", pin.ClientID)
	assert.Equal(t, "peer.test", pin.SubjectCN)
	assert.Equal(t, "active", pin.Status)

	_, err = executeCommand(t, "pin", "add", addr, "--db", db)
	assert.Error(t, err, "pinning twice should fail")

	out, err = executeCommand(t, "pin", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, `"total": 1`)

	out, err = executeCommand(t, "pin", "revoke", pin.Fingerprint, "--db", db, "--reason", "rotated")
	require.NoError(t, err)
	assert.Contains(t, out, "revoked")

	out, err = executeCommand(t, "pin", "list", "--db", db, "--status", "revoked")
	require.NoError(t, err)
	assert.Contains(t, out, "rotated")

	_, err = executeCommand(t, "pin", "list", "--db", db, "--status", "bogus")
	assert.Error(t, err)

	out, err = executeCommand(t, "pin", "clean", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "expired 0")

	out, err = executeCommand(t, "pin", "remove", pin.Fingerprint, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "removed")

	_, err = executeCommand(t, "pin", "remove", pin.Fingerprint, "--db", db)
	assert.Error(t, err)
}

func TestConfigFile(t *testing.T) {
	addr := startPeer(t, "peer.test")
	dir := t.TempDir()
	audit := filepath.Join(dir, "audit.log")

	cfg := `inspector:
  fingerprint_algorithm: sha1
logging:
  level: error
  format: text
  output: stderr
  audit_file: ` + audit + "\n"
	cfgPath := filepath.Join(dir, "peercert.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	out, err := executeCommand(t, "--config", cfgPath, "info", addr)
	require.NoError(t, err)
	assert.Contains(t, out, `"fingerprint": "sha1:`)

	data, err := os.ReadFile(audit)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"transport":"cli"`)
	assert.Contains(t, string(data), `"subject_cn":"peer.test"`)

	_, err = executeCommand(t, "--config", filepath.Join(dir, "missing.yaml"), "info", addr)
	assert.Error(t, err)
}

func TestConfigFile_LogCarriesCommand(t *testing.T) {
	addr := startPeer(t, "peer.test")
	dir := t.TempDir()
	logFile := filepath.Join(dir, "peerinspect.log")

	cfg := `logging:
  level: debug
  format: json
  output: ` + logFile + "\n"
	cfgPath := filepath.Join(dir, "peercert.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	_, err := executeCommand(t, "--config", cfgPath, "info", addr)
	require.NoError(t, err)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"Connected"`)
	assert.Contains(t, string(data), `"command":"peerinspect info"`)
}

func TestServeCommand_RequiresCertificate(t *testing.T) {
	_, err := executeCommand(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tls.cert_file")
}
