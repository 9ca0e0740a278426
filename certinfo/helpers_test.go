package certinfo

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// fixture 自签名测试证书及其私钥
type fixture struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

// newFixture 根据模板生成自签名证书并重新解析
func newFixture(t *testing.T, template *x509.Certificate) fixture {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	if template.SerialNumber == nil {
		template.SerialNumber = big.NewInt(1)
	}
	if template.NotBefore.IsZero() {
		template.NotBefore = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if template.NotAfter.IsZero() {
		template.NotAfter = template.NotBefore.Add(365 * 24 * time.Hour)
	}
	template.KeyUsage = x509.KeyUsageDigitalSignature
	template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}
	template.BasicConstraintsValid = true

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return fixture{cert: cert, key: priv}
}

// defaultTemplate 包含全部实体属性和各类备用名称
func defaultTemplate() *x509.Certificate {
	return &x509.Certificate{
		SerialNumber: big.NewInt(4096),
		Subject: pkix.Name{
			CommonName:         "gateway.example.com",
			Country:            []string{"DE"},
			Province:           []string{"Berlin"},
			Locality:           []string{"Berlin"},
			StreetAddress:      []string{"Unter den Linden 1"},
			Organization:       []string{"Example GmbH"},
			OrganizationalUnit: []string{"Platform"},
		},
		NotBefore:      time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:       time.Date(2025, time.March, 9, 12, 30, 45, 0, time.UTC),
		DNSNames:       []string{"gateway.example.com", "*.svc.example.com"},
		EmailAddresses: []string{"ops@example.com"},
		IPAddresses:    []net.IP{net.ParseIP("192.0.2.10"), net.ParseIP("2001:db8::1")},
	}
}

// connectedSession 返回已完成握手的会话
func connectedSession(cert *x509.Certificate) Session {
	return StateSession(&tls.ConnectionState{
		HandshakeComplete: true,
		PeerCertificates:  []*x509.Certificate{cert},
	})
}

// dialFixture 建立真实的 TLS 连接，服务端出示 f 的证书
func dialFixture(t *testing.T, f fixture) *tls.Conn {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	serverConfig := &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{f.cert.Raw},
			PrivateKey:  f.key,
		}},
		MinVersion: tls.VersionTLS12,
	}

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		server := tls.Server(conn, serverConfig)
		t.Cleanup(func() { server.Close() })
		done <- server.Handshake()
	}()

	// 链验证不在检查器职责内
	client, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{InsecureSkipVerify: true})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, <-done)

	return client
}

// sanExtension 以原始 GeneralName 序列构造 SAN 扩展
func sanExtension(names ...func(b *cryptobyte.Builder)) pkix.Extension {
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, add := range names {
			add(b)
		}
	})
	return pkix.Extension{Id: oidExtensionSubjectAltName, Value: b.BytesOrPanic()}
}

// generalName 构造指定隐式标签的 GeneralName
func generalName(tag cbasn1.Tag, data []byte) func(b *cryptobyte.Builder) {
	return func(b *cryptobyte.Builder) {
		b.AddASN1(tag, func(b *cryptobyte.Builder) {
			b.AddBytes(data)
		})
	}
}

func dnsName(s string) func(b *cryptobyte.Builder) {
	return generalName(contextTag(nameTypeDNS), []byte(s))
}

func ipAddress(ip []byte) func(b *cryptobyte.Builder) {
	return generalName(contextTag(nameTypeIP), ip)
}

// certWithExtensions 仅含扩展的证书结构，用于直接测试收集器
func certWithExtensions(exts ...pkix.Extension) *x509.Certificate {
	return &x509.Certificate{Extensions: exts}
}

// nameDER 构造单个 RDN 的原始名称
func nameDER(oid []int, tag cbasn1.Tag, value []byte) []byte {
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SET, func(b *cryptobyte.Builder) {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(oid)
				b.AddASN1(tag, func(b *cryptobyte.Builder) {
					b.AddBytes(value)
				})
			})
		})
	})
	return b.BytesOrPanic()
}
