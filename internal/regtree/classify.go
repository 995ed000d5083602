package regtree

import "strings"

// Classifier 判定叶子是否为寄存器读取失败的哨兵编码，并提取其分类。
// 实现不得 panic；无法识别的值一律视为有效数据。
type Classifier interface {
	IsError(value string) bool
	Category(value string) string
}

// Sentinels 为寄存器读取层的默认哨兵编码：
//   - "N/A"：未读取或读取失败；
//   - "UA:0x..." / "DF:0x..." / "UA:0x..,DF:0x.."：不可用/数据失败码，分类为原值；
//   - "<data>,CC:0x..[,RC:0x..]"：带完成码/返回码注记的值，分类为注记部分。
type Sentinels struct{}

// Default 为包级默认分类器。
var Default Classifier = Sentinels{}

const notAvailable = "N/A"

var annotationPrefixes = []string{"CC:", "RC:", "UA:", "DF:"}

func (Sentinels) IsError(value string) bool {
	v := strings.TrimSpace(value)
	if v == notAvailable {
		return true
	}
	if hasAnnotationPrefix(v) {
		return true
	}
	_, ok := annotations(v)
	return ok
}

func (s Sentinels) Category(value string) string {
	v := strings.TrimSpace(value)
	if v == notAvailable || hasAnnotationPrefix(v) {
		return v
	}
	if cat, ok := annotations(v); ok {
		return cat
	}
	return ""
}

func hasAnnotationPrefix(v string) bool {
	for _, p := range annotationPrefixes {
		if strings.HasPrefix(strings.ToUpper(v), p) {
			return true
		}
	}
	return false
}

// annotations 返回逗号后的注记串；任一段不是已知注记则判定为普通值。
func annotations(v string) (string, bool) {
	i := strings.IndexByte(v, ',')
	if i < 0 || i == len(v)-1 {
		return "", false
	}
	rest := v[i+1:]
	for _, part := range strings.Split(rest, ",") {
		if !hasAnnotationPrefix(strings.TrimSpace(part)) {
			return "", false
		}
	}
	return rest, true
}
