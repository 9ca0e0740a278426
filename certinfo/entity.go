package certinfo

import (
	"crypto/x509/pkix"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// cryptobyte/asn1 未定义的字符串标签
const (
	tagNumericString   = cbasn1.Tag(18)
	tagUniversalString = cbasn1.Tag(28)
	tagBMPString       = cbasn1.Tag(30)
)

// entityAttributes 实体提取的固定顺序
var entityAttributes = []AttributeKind{
	AttrCommonName,
	AttrCountry,
	AttrStateOrProvince,
	AttrLocality,
	AttrStreetAddress,
	AttrOrganization,
	AttrOrganizationalUnit,
}

// ExtractEntity 从名称记录中提取七个可识别属性
// 属性缺失不是错误；遇到第一个结构错误即返回
func ExtractEntity(name NameRecord) (Entity, error) {
	var ent Entity
	fields := []*string{
		&ent.CommonName,
		&ent.Country,
		&ent.StateOrProvince,
		&ent.Locality,
		&ent.StreetAddress,
		&ent.Organization,
		&ent.OrganizationalUnit,
	}

	for i, kind := range entityAttributes {
		value, ok, err := ConvertNameAttribute(name, kind)
		if err != nil {
			return Entity{}, err
		}
		if ok {
			*fields[i] = value
		}
	}
	return ent, nil
}

// ParseNameRecord 解析 DER 编码的 Name（RDNSequence）
// 仅接受常见 ASN.1 字符串类型的属性值，其余标签视为损坏
func ParseNameRecord(der []byte) (NameRecord, error) {
	input := cryptobyte.String(der)
	var rdnSeq cryptobyte.String
	if !input.ReadASN1(&rdnSeq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, newError(KindCorruptValue, "corrupt cert - invalid name")
	}

	var record NameRecord
	for !rdnSeq.Empty() {
		var set cryptobyte.String
		if !rdnSeq.ReadASN1(&set, cbasn1.SET) {
			return nil, newError(KindCorruptValue, "corrupt cert - invalid RDN set")
		}
		for !set.Empty() {
			var atav cryptobyte.String
			if !set.ReadASN1(&atav, cbasn1.SEQUENCE) {
				return nil, newError(KindCorruptValue, "corrupt cert - invalid attribute")
			}
			var attr pkix.AttributeTypeAndValue
			if !atav.ReadASN1ObjectIdentifier(&attr.Type) {
				return nil, newError(KindCorruptValue, "corrupt cert - invalid attribute type")
			}
			var raw cryptobyte.String
			var tag cbasn1.Tag
			if !atav.ReadAnyASN1(&raw, &tag) || !atav.Empty() {
				return nil, newError(KindCorruptValue, "corrupt cert - invalid attribute value").
					WithDetails("oid", attr.Type.String())
			}
			value, err := decodeNameString(tag, raw)
			if err != nil {
				return nil, err.WithDetails("oid", attr.Type.String())
			}
			attr.Value = value
			record = append(record, attr)
		}
	}
	return record, nil
}

// decodeNameString 将 ASN.1 字符串值解码为 UTF-8
// NUL 字节在此保留，由 ConvertNameAttribute 统一拒绝
func decodeNameString(tag cbasn1.Tag, raw []byte) (string, *Error) {
	if len(raw) > MaxValueLength {
		return "", newError(KindCorruptValue, "corrupt cert - %s value too long", tagName(tag)).
			WithDetails("length", len(raw))
	}
	switch tag {
	case cbasn1.PrintableString, cbasn1.IA5String, tagNumericString:
		if !isASCII(raw) {
			return "", newError(KindCorruptValue, "corrupt cert - non-ASCII bytes in %s value", tagName(tag))
		}
		return string(raw), nil
	case cbasn1.T61String:
		return string(raw), nil
	case cbasn1.UTF8String:
		if !utf8.Valid(raw) {
			return "", newError(KindCorruptValue, "corrupt cert - invalid UTF-8 value")
		}
		return string(raw), nil
	case tagBMPString:
		if len(raw)%2 != 0 {
			return "", newError(KindCorruptValue, "corrupt cert - odd-length BMPString")
		}
		units := make([]uint16, 0, len(raw)/2)
		for i := 0; i < len(raw); i += 2 {
			units = append(units, uint16(raw[i])<<8|uint16(raw[i+1]))
		}
		return string(utf16.Decode(units)), nil
	case tagUniversalString:
		if len(raw)%4 != 0 {
			return "", newError(KindCorruptValue, "corrupt cert - bad UniversalString length")
		}
		runes := make([]rune, 0, len(raw)/4)
		for i := 0; i < len(raw); i += 4 {
			r := rune(raw[i])<<24 | rune(raw[i+1])<<16 | rune(raw[i+2])<<8 | rune(raw[i+3])
			if !utf8.ValidRune(r) {
				return "", newError(KindCorruptValue, "corrupt cert - invalid UniversalString rune")
			}
			runes = append(runes, r)
		}
		return string(runes), nil
	default:
		return "", newError(KindCorruptValue, "corrupt cert - unsupported name value type %d", int(tag))
	}
}

func tagName(tag cbasn1.Tag) string {
	switch tag {
	case cbasn1.PrintableString:
		return "PrintableString"
	case cbasn1.IA5String:
		return "IA5String"
	case tagNumericString:
		return "NumericString"
	default:
		return "string"
	}
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
