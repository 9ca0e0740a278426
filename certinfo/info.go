package certinfo

import (
	"crypto/x509"

	"github.com/houzhh15/sdp-peercert/logging"
)

// Options 检查器配置
type Options struct {
	MaxAltNames int            // 备用名称上限，默认 DefaultMaxAltNames
	Logger      logging.Logger // 可选
}

// Inspector 对端证书检查器（无状态，可并发使用）
type Inspector struct {
	maxAltNames int
	logger      logging.Logger
}

// NewInspector 创建证书检查器
func NewInspector(opts *Options) *Inspector {
	if opts == nil {
		opts = &Options{}
	}
	maxAltNames := opts.MaxAltNames
	if maxAltNames <= 0 {
		maxAltNames = DefaultMaxAltNames
	}
	return &Inspector{
		maxAltNames: maxAltNames,
		logger:      opts.Logger,
	}
}

var defaultInspector = NewInspector(nil)

// GetPeerCertificateInfo 使用默认检查器提取对端证书信息
func GetPeerCertificateInfo(s Session) (*CertificateInfo, error) {
	return defaultInspector.GetPeerCertificateInfo(s)
}

// Describe 使用默认检查器转换已解析的证书
func Describe(cert *x509.Certificate) (*CertificateInfo, error) {
	return defaultInspector.Describe(cert)
}

// GetPeerCertificateInfo 提取对端证书信息
// 要么返回完整记录，要么返回错误，不会返回部分结果
func (i *Inspector) GetPeerCertificateInfo(s Session) (*CertificateInfo, error) {
	cert, err := peerCertificate(s)
	if err != nil {
		recordInspection(nil, err)
		i.logRejection("Peer certificate unavailable", err)
		return nil, err
	}
	return i.Describe(cert)
}

// Describe 将证书转换为独立拥有的 CertificateInfo
func (i *Inspector) Describe(cert *x509.Certificate) (*CertificateInfo, error) {
	info, err := i.assemble(cert)
	recordInspection(info, err)
	if err != nil {
		i.logRejection("Peer certificate rejected", err)
		return nil, err
	}

	if i.logger != nil {
		i.logger.Debug("Peer certificate inspected",
			"subject_cn", info.Subject.CommonName,
			"issuer_cn", info.Issuer.CommonName,
			"serial", info.Serial,
			"alt_names", len(info.AltNames))
	}
	return info, nil
}

// assemble 依次提取版本、主题、签发者、备用名称、有效期和序列号
func (i *Inspector) assemble(cert *x509.Certificate) (*CertificateInfo, error) {
	if cert == nil {
		return nil, newError(KindNoPeerCertificate, "peer does not have cert")
	}

	version := cert.Version - 1
	if version < 0 {
		return nil, newError(KindInvalidVersion, "invalid version").WithDetails("version", cert.Version)
	}
	if len(cert.RawSubject) == 0 {
		return nil, newError(KindMissingSubject, "cert does not have subject")
	}
	if len(cert.RawIssuer) == 0 {
		return nil, newError(KindMissingIssuer, "cert does not have issuer")
	}

	var info CertificateInfo
	info.Version = version

	subject, err := entityFromDER(cert.RawSubject, "subject")
	if err != nil {
		return nil, err
	}
	info.Subject = subject

	issuer, err := entityFromDER(cert.RawIssuer, "issuer")
	if err != nil {
		return nil, err
	}
	info.Issuer = issuer

	altNames, err := CollectAltNamesLimit(cert, i.maxAltNames)
	if err != nil {
		return nil, err
	}
	info.AltNames = altNames

	if cert.NotAfter.Before(cert.NotBefore) {
		return nil, parseError(FormatASN1Time(cert.NotBefore)+" > "+FormatASN1Time(cert.NotAfter),
			"invalid validity: notAfter before notBefore")
	}
	if info.NotBefore, err = ConvertTime(FormatASN1Time(cert.NotBefore)); err != nil {
		return nil, err
	}
	if info.NotAfter, err = ConvertTime(FormatASN1Time(cert.NotAfter)); err != nil {
		return nil, err
	}

	if info.Serial, err = ConvertInteger(cert.SerialNumber); err != nil {
		return nil, err
	}

	return &info, nil
}

// entityFromDER 解析原始名称并提取实体
func entityFromDER(der []byte, field string) (Entity, error) {
	record, err := ParseNameRecord(der)
	if err != nil {
		return Entity{}, withField(err, field)
	}
	ent, err := ExtractEntity(record)
	if err != nil {
		return Entity{}, withField(err, field)
	}
	return ent, nil
}

func withField(err error, field string) error {
	if e, ok := err.(*Error); ok {
		return e.WithDetails("field", field)
	}
	return err
}

func (i *Inspector) logRejection(msg string, err error) {
	if i.logger == nil {
		return
	}
	i.logger.Warn(msg, "kind", string(KindOf(err)), "error", err)
}
