package certinfo

import (
	"net"
	"strings"
)

// MatchesHost 检查 host 是否与证书身份匹配
// IP 仅与 IP 类型备用名称比较；主机名与 DNS 名称比较，支持最左侧单标签通配符。
// 仅当证书没有任何 DNS/IP 备用名称时才回退到主题 CN。
func (c *CertificateInfo) MatchesHost(host string) bool {
	if c == nil || host == "" {
		return false
	}
	host = strings.TrimSuffix(host, ".")
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")

	if ip := net.ParseIP(host); ip != nil {
		for _, candidate := range c.IPAddresses() {
			if candidate.Equal(ip) {
				return true
			}
		}
		return false
	}

	dnsNames := c.DNSNames()
	if len(dnsNames) == 0 && len(c.IPAddresses()) == 0 && c.Subject.CommonName != "" {
		dnsNames = []string{c.Subject.CommonName}
	}
	for _, pattern := range dnsNames {
		if matchHostname(pattern, host) {
			return true
		}
	}
	return false
}

func matchHostname(pattern, host string) bool {
	pattern = strings.ToLower(strings.TrimSuffix(pattern, "."))
	host = strings.ToLower(host)
	if pattern == "" || host == "" {
		return false
	}

	patternParts := strings.Split(pattern, ".")
	hostParts := strings.Split(host, ".")
	if len(patternParts) != len(hostParts) {
		return false
	}
	for i, part := range patternParts {
		if hostParts[i] == "" {
			return false
		}
		if i == 0 && part == "*" && len(patternParts) > 2 {
			continue
		}
		if part != hostParts[i] {
			return false
		}
	}
	return true
}
