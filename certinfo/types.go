package certinfo

import (
	"bytes"
	"net"
	"slices"
)

// AltNameKind 备用名称类型
type AltNameKind int

const (
	AltNameDNS AltNameKind = iota + 1
	AltNameEmail
	AltNameURI
	AltNameIPv4
	AltNameIPv6
)

// String 返回类型名称
func (k AltNameKind) String() string {
	switch k {
	case AltNameDNS:
		return "DNS"
	case AltNameEmail:
		return "Email"
	case AltNameURI:
		return "URI"
	case AltNameIPv4:
		return "IPv4"
	case AltNameIPv6:
		return "IPv6"
	default:
		return "unknown"
	}
}

// MarshalText 以名称形式序列化
func (k AltNameKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// AltName 主题备用名称条目
// DNS/Email/URI 使用 Name；IPv4/IPv6 使用 IP（4 或 16 字节原始地址）
type AltName struct {
	Kind AltNameKind `json:"kind"`
	Name string      `json:"name,omitempty"`
	IP   net.IP      `json:"ip,omitempty"`
}

// String 返回 "DNS:example.com" 形式
func (a AltName) String() string {
	switch a.Kind {
	case AltNameIPv4, AltNameIPv6:
		return "IP:" + a.IP.String()
	default:
		return a.Kind.String() + ":" + a.Name
	}
}

// Entity 证书实体（主题或签发者）
// 空字符串表示属性不存在
type Entity struct {
	CommonName         string `json:"common_name,omitempty"`
	Country            string `json:"country,omitempty"`
	StateOrProvince    string `json:"state_or_province,omitempty"`
	Locality           string `json:"locality,omitempty"`
	StreetAddress      string `json:"street_address,omitempty"`
	Organization       string `json:"organization,omitempty"`
	OrganizationalUnit string `json:"organizational_unit,omitempty"`
}

// CertificateInfo 对端证书信息
type CertificateInfo struct {
	Version   int       `json:"version"`
	Subject   Entity    `json:"subject"`
	Issuer    Entity    `json:"issuer"`
	AltNames  []AltName `json:"alt_names"`
	NotBefore string    `json:"not_before"`
	NotAfter  string    `json:"not_after"`
	Serial    string    `json:"serial"`
}

// Clone 深拷贝
func (c *CertificateInfo) Clone() *CertificateInfo {
	if c == nil {
		return nil
	}
	out := *c
	out.AltNames = make([]AltName, len(c.AltNames))
	for i, an := range c.AltNames {
		out.AltNames[i] = AltName{
			Kind: an.Kind,
			Name: an.Name,
			IP:   slices.Clone(an.IP),
		}
	}
	return &out
}

// Equal 结构比较
func (c *CertificateInfo) Equal(other *CertificateInfo) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.Version != other.Version ||
		c.Subject != other.Subject ||
		c.Issuer != other.Issuer ||
		c.NotBefore != other.NotBefore ||
		c.NotAfter != other.NotAfter ||
		c.Serial != other.Serial {
		return false
	}
	return slices.EqualFunc(c.AltNames, other.AltNames, func(a, b AltName) bool {
		return a.Kind == b.Kind && a.Name == b.Name && bytes.Equal(a.IP, b.IP)
	})
}

// DNSNames 返回所有 DNS 类型备用名称
func (c *CertificateInfo) DNSNames() []string {
	return c.names(AltNameDNS)
}

// EmailAddresses 返回所有 Email 类型备用名称
func (c *CertificateInfo) EmailAddresses() []string {
	return c.names(AltNameEmail)
}

// URIs 返回所有 URI 类型备用名称
func (c *CertificateInfo) URIs() []string {
	return c.names(AltNameURI)
}

// IPAddresses 返回所有 IP 类型备用名称
func (c *CertificateInfo) IPAddresses() []net.IP {
	var ips []net.IP
	for _, an := range c.AltNames {
		if an.Kind == AltNameIPv4 || an.Kind == AltNameIPv6 {
			ips = append(ips, an.IP)
		}
	}
	return ips
}

func (c *CertificateInfo) names(kind AltNameKind) []string {
	var out []string
	for _, an := range c.AltNames {
		if an.Kind == kind {
			out = append(out, an.Name)
		}
	}
	return out
}
