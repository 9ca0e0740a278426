package certinfo

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"net"
	"slices"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// DefaultMaxAltNames 单个证书可收集的备用名称上限
const DefaultMaxAltNames = 1024

// MaxValueLength 单个名称属性或备用名称文本的字节上限，超出视为损坏
const MaxValueLength = 4096

var oidExtensionSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}

// GeneralName 的隐式上下文标签（RFC 5280 4.2.1.6）
const (
	nameTypeEmail = 1
	nameTypeDNS   = 2
	nameTypeURI   = 6
	nameTypeIP    = 7
)

// CollectAltNames 按扩展中的顺序收集主题备用名称
// 无 SAN 扩展时返回空切片；任何结构错误都会丢弃已收集的条目
func CollectAltNames(cert *x509.Certificate) ([]AltName, error) {
	return CollectAltNamesLimit(cert, DefaultMaxAltNames)
}

// CollectAltNamesLimit 同 CollectAltNames，使用指定的条目上限
func CollectAltNamesLimit(cert *x509.Certificate, limit int) ([]AltName, error) {
	if cert == nil {
		return nil, newError(KindNoPeerCertificate, "peer does not have cert")
	}
	if limit <= 0 {
		limit = DefaultMaxAltNames
	}

	var value []byte
	found := false
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oidExtensionSubjectAltName) {
			value = ext.Value
			found = true
			break
		}
	}
	if !found {
		return []AltName{}, nil
	}

	der := cryptobyte.String(value)
	var seq cryptobyte.String
	if !der.ReadASN1(&seq, cbasn1.SEQUENCE) || !der.Empty() {
		return nil, newError(KindCorruptValue, "invalid subject alternative names")
	}

	count, err := countGeneralNames(seq, limit)
	if err != nil {
		return nil, err
	}

	names := make([]AltName, 0, count)
	for i := 0; !seq.Empty(); i++ {
		var data cryptobyte.String
		var tag cbasn1.Tag
		if !seq.ReadAnyASN1(&data, &tag) {
			return nil, newError(KindCorruptValue, "invalid subject alternative name").WithDetails("index", i)
		}

		var (
			an   AltName
			ok   bool
			aerr *Error
		)
		switch tag {
		case contextTag(nameTypeDNS):
			an, aerr = loadAltText(data, AltNameDNS)
			ok = true
		case contextTag(nameTypeEmail):
			an, aerr = loadAltText(data, AltNameEmail)
			ok = true
		case contextTag(nameTypeURI):
			an, aerr = loadAltText(data, AltNameURI)
			ok = true
		case contextTag(nameTypeIP):
			an, aerr = loadAltIP(data)
			ok = true
		case contextTag(nameTypeDNS).Constructed(),
			contextTag(nameTypeEmail).Constructed(),
			contextTag(nameTypeURI).Constructed(),
			contextTag(nameTypeIP).Constructed():
			aerr = newError(KindCorruptValue, "mismatched encoding for alternative name")
		default:
			// 忽略未知类型
		}
		if aerr != nil {
			return nil, aerr.WithDetails("index", i)
		}
		if ok {
			names = append(names, an)
		}
	}
	return names, nil
}

func contextTag(n uint8) cbasn1.Tag {
	return cbasn1.Tag(n).ContextSpecific()
}

// countGeneralNames 统计声明的条目数，超过上限时失败
func countGeneralNames(seq cryptobyte.String, limit int) (int, error) {
	n := 0
	for !seq.Empty() {
		var skip cryptobyte.String
		var tag cbasn1.Tag
		if !seq.ReadAnyASN1(&skip, &tag) {
			return 0, newError(KindCorruptValue, "invalid subject alternative name").WithDetails("index", n)
		}
		n++
		if n > limit {
			return 0, newError(KindOutOfMemory, "too many alternative names (limit %d)", limit).
				WithDetails("limit", limit)
		}
	}
	return n, nil
}

// loadAltText 校验 IA5String 形式的 dNSName/rfc822Name/URI
func loadAltText(data []byte, kind AltNameKind) (AltName, *Error) {
	// RFC 5280 4.2.1.6: 不允许空字符串
	if len(data) == 0 || bytes.IndexByte(data, 0) >= 0 {
		return AltName{}, newError(KindCorruptValue, "invalid string value")
	}
	if len(data) > MaxValueLength {
		return AltName{}, newError(KindCorruptValue, "string value too long").
			WithDetails("length", len(data))
	}
	if !isASCII(data) {
		return AltName{}, newError(KindCorruptValue, "invalid string value: not IA5String")
	}
	// " " 语法上合法，但作为 dNSName 必须拒绝
	if len(data) == 1 && data[0] == ' ' {
		return AltName{}, newError(KindCorruptValue, "single space as name")
	}
	return AltName{Kind: kind, Name: string(data)}, nil
}

// loadAltIP IPv4 必须为 4 字节，IPv6 必须为 16 字节
func loadAltIP(data []byte) (AltName, *Error) {
	switch len(data) {
	case net.IPv4len:
		return AltName{Kind: AltNameIPv4, IP: net.IP(slices.Clone(data))}, nil
	case net.IPv6len:
		return AltName{Kind: AltNameIPv6, IP: net.IP(slices.Clone(data))}, nil
	default:
		return AltName{}, newError(KindInvalidAddressLength, "invalid length for ipaddress").
			WithDetails("length", len(data))
	}
}
