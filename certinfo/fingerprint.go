package certinfo

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"
)

// maxDigestSize 工作缓冲区大小，覆盖所有支持的摘要长度
const maxDigestSize = sha256.Size

// 支持的指纹算法
const (
	AlgorithmSHA1   = "sha1"
	AlgorithmSHA256 = "sha256"
)

// GetPeerCertificateFingerprint 使用默认检查器计算对端证书指纹
func GetPeerCertificateFingerprint(s Session, algorithm string, out []byte) (int, error) {
	return defaultInspector.GetPeerCertificateFingerprint(s, algorithm, out)
}

// GetPeerCertificateFingerprint 计算对端证书 DER 编码的摘要并写入 out
// 写入 min(摘要长度, len(out)) 字节并返回写入长度；out 较短时截断不视为错误
func (i *Inspector) GetPeerCertificateFingerprint(s Session, algorithm string, out []byte) (int, error) {
	cert, err := peerCertificate(s)
	if err != nil {
		recordRejection(err)
		i.logRejection("Peer certificate unavailable", err)
		return 0, err
	}

	n, err := Fingerprint(cert.Raw, algorithm, out)
	if err != nil {
		recordRejection(err)
		i.logRejection("Fingerprint failed", err)
		return 0, err
	}
	return n, nil
}

// Fingerprint 计算 der 的摘要并写入 out
// 保存完整摘要的工作缓冲区在返回前清零
func Fingerprint(der []byte, algorithm string, out []byte) (int, error) {
	var h hash.Hash
	var name string
	switch {
	case strings.EqualFold(algorithm, AlgorithmSHA1):
		h, name = sha1.New(), AlgorithmSHA1
	case strings.EqualFold(algorithm, AlgorithmSHA256):
		h, name = sha256.New(), AlgorithmSHA256
	default:
		return 0, newError(KindUnsupportedAlgorithm, "invalid fingerprint algorithm %q", algorithm)
	}

	var tmp [maxDigestSize]byte
	defer clear(tmp[:])

	h.Write(der)
	sum := h.Sum(tmp[:0])
	h.Reset()

	recordFingerprint(name)
	return copy(out, sum), nil
}

// DigestSize 返回算法的完整摘要长度，不支持的算法返回 0
func DigestSize(algorithm string) int {
	switch {
	case strings.EqualFold(algorithm, AlgorithmSHA1):
		return sha1.Size
	case strings.EqualFold(algorithm, AlgorithmSHA256):
		return sha256.Size
	default:
		return 0
	}
}

// FormatFingerprint 渲染为 "sha256:<hex>" 形式
func FormatFingerprint(algorithm string, digest []byte) string {
	return strings.ToLower(algorithm) + ":" + hex.EncodeToString(digest)
}

// PeerFingerprintString 计算完整指纹并渲染为字符串
func (i *Inspector) PeerFingerprintString(s Session, algorithm string) (string, error) {
	var buf [maxDigestSize]byte
	defer clear(buf[:])

	n, err := i.GetPeerCertificateFingerprint(s, algorithm, buf[:DigestSize(algorithm)])
	if err != nil {
		return "", err
	}
	return FormatFingerprint(algorithm, buf[:n]), nil
}
