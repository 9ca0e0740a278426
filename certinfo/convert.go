package certinfo

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// ConvertInteger 将证书序列号转换为十进制字符串
// 可用 int64 表示时走快速路径，否则使用大整数转换；负数视为格式错误
func ConvertInteger(n *big.Int) (string, error) {
	if n == nil {
		return "", parseError("", "cannot parse serial: missing value")
	}
	if n.Sign() < 0 {
		return "", parseError(n.String(), "cannot parse serial: negative value")
	}
	if n.IsInt64() {
		return strconv.FormatInt(n.Int64(), 10), nil
	}
	return n.Text(10), nil
}

// asn1TimeLayout 证书有效期的打印格式，如 "Aug 18 20:51:52 2015 GMT"
const asn1TimeLayout = "Jan _2 15:04:05 2006"

// FormatASN1Time 按 "Mon DD HH:MM:SS YYYY GMT" 格式渲染证书时间
func FormatASN1Time(t time.Time) string {
	return t.UTC().Format(asn1TimeLayout) + " GMT"
}

var months = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// ConvertTime 将 "Mon DD HH:MM:SS YYYY [TZ]" 转换为 ISO 8601（YYYY-MM-DDTHH:MM:SSZ）
func ConvertTime(raw string) (string, error) {
	buf := []byte(raw)

	// "Jan  1"
	if len(buf) > 4 && buf[3] == ' ' && buf[4] == ' ' {
		buf[4] = '0'
	}

	fields := strings.Split(string(buf), " ")
	if len(fields) < 4 || len(fields) > 5 {
		return "", parseError(raw, "invalid time format: no year")
	}
	mon, day, clock, year := fields[0], fields[1], fields[2], fields[3]
	if len(fields) == 5 && fields[4] != "GMT" {
		return "", parseError(raw, "invalid time format: unsupported timezone %q", fields[4])
	}
	if len(year) != 4 || !isDigits(year) {
		return "", parseError(raw, "invalid time format: no year")
	}

	month := -1
	for i, m := range months {
		if m == mon {
			month = i + 1
			break
		}
	}
	if month < 0 {
		return "", parseError(raw, "invalid time format: unknown month %q", mon)
	}

	if len(day) != 2 || !isDigits(day) {
		return "", parseError(raw, "invalid time format: bad day %q", day)
	}
	if !validClock(clock) {
		return "", parseError(raw, "invalid time format: bad time %q", clock)
	}

	return fmt.Sprintf("%s-%02d-%sT%sZ", year, month, day, clock), nil
}

// validClock 检查 HH:MM:SS
func validClock(s string) bool {
	if len(s) != 8 || s[2] != ':' || s[5] != ':' {
		return false
	}
	return isDigits(s[0:2]) && isDigits(s[3:5]) && isDigits(s[6:8])
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// AttributeKind 可识别的名称属性
type AttributeKind int

const (
	AttrCommonName AttributeKind = iota
	AttrCountry
	AttrStateOrProvince
	AttrLocality
	AttrStreetAddress
	AttrOrganization
	AttrOrganizationalUnit
)

var attributeOIDs = map[AttributeKind]asn1.ObjectIdentifier{
	AttrCommonName:         {2, 5, 4, 3},
	AttrCountry:            {2, 5, 4, 6},
	AttrStateOrProvince:    {2, 5, 4, 8},
	AttrLocality:           {2, 5, 4, 7},
	AttrStreetAddress:      {2, 5, 4, 9},
	AttrOrganization:       {2, 5, 4, 10},
	AttrOrganizationalUnit: {2, 5, 4, 11},
}

var attributeNames = map[AttributeKind]string{
	AttrCommonName:         "CN",
	AttrCountry:            "C",
	AttrStateOrProvince:    "ST",
	AttrLocality:           "L",
	AttrStreetAddress:      "street",
	AttrOrganization:       "O",
	AttrOrganizationalUnit: "OU",
}

// OID 返回属性对应的对象标识符
func (k AttributeKind) OID() asn1.ObjectIdentifier {
	return attributeOIDs[k]
}

// String 返回属性短名
func (k AttributeKind) String() string {
	if name, ok := attributeNames[k]; ok {
		return name
	}
	return "attr(" + strconv.Itoa(int(k)) + ")"
}

// NameRecord 按编码顺序展开的名称属性（主题或签发者）
type NameRecord []pkix.AttributeTypeAndValue

// ConvertNameAttribute 查找名称中第一个指定属性
// 不存在返回 ok=false；存在但为空、含NUL或非字符串时返回 CorruptValue
func ConvertNameAttribute(name NameRecord, kind AttributeKind) (string, bool, error) {
	oid := kind.OID()
	if oid == nil {
		return "", false, nil
	}
	for _, atv := range name {
		if !atv.Type.Equal(oid) {
			continue
		}
		s, ok := atv.Value.(string)
		if !ok {
			return "", false, newError(KindCorruptValue, "corrupt cert - %s is not a string", kind).
				WithDetails("attribute", kind.String())
		}
		if s == "" {
			return "", false, newError(KindCorruptValue, "corrupt cert - empty %s", kind).
				WithDetails("attribute", kind.String())
		}
		if strings.IndexByte(s, 0) >= 0 {
			return "", false, newError(KindCorruptValue, "corrupt cert - NUL bytes in %s", kind).
				WithDetails("attribute", kind.String())
		}
		return strings.Clone(s), true, nil
	}
	return "", false, nil
}
