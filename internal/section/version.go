package section

import (
	"fmt"
	"strings"

	"acdverify/pkg/contract"
)

// validProducts 为已认证的产品码。
var validProducts = map[string]struct{}{
	"2A": {}, "2B": {}, "1A": {}, "1B": {}, "1C": {},
	"2C": {}, "2D": {}, "33": {}, "22": {}, "23": {},
	"34": {}, "6F": {}, "2F": {},
}

// Version 为版本字段解码结果。
type Version struct {
	Revision string
	Product  string
}

// DecodeVersion 解码版本字段：去掉 0x 与前导零后，
// 第二个 nibble 为 0 时修订码取 1 位、产品码取 [2:4]，否则修订码取 2 位、产品码取 [3:5]。
func DecodeVersion(raw string) (Version, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	v = strings.TrimPrefix(v, "0X")
	v = strings.TrimLeft(v, "0")
	if len(v) < 2 {
		return Version{}, fmt.Errorf("%w: version %q too short", contract.ErrInvalidInput, raw)
	}
	if v[1] == '0' {
		if len(v) < 4 {
			return Version{}, fmt.Errorf("%w: version %q too short", contract.ErrInvalidInput, raw)
		}
		return Version{Revision: v[:1], Product: v[2:4]}, nil
	}
	if len(v) < 5 {
		return Version{}, fmt.Errorf("%w: version %q too short", contract.ErrInvalidInput, raw)
	}
	return Version{Revision: v[:2], Product: v[3:5]}, nil
}

// ValidProduct 报告产品码是否在白名单内。
func ValidProduct(p string) bool {
	_, ok := validProducts[strings.ToUpper(p)]
	return ok
}

// checkVersion 返回版本字段的自检错误（可能为空）。
func checkVersion(k Kind, raw string) []string {
	r := kindRules[k]
	if r.revision == "" {
		return nil
	}
	name := k.Key()
	ver, err := DecodeVersion(raw)
	if err != nil {
		return []string{fmt.Sprintf("%s's version %s could not be decoded", name, raw)}
	}
	var out []string
	if ver.Revision != r.revision {
		out = append(out, fmt.Sprintf("Revision for %s's version doesn't match with section detected", name))
	}
	if !ValidProduct(ver.Product) {
		out = append(out, fmt.Sprintf("Product 0x%s in %s's version is an invalid product", ver.Product, name))
	}
	return out
}
