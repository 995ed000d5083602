package contract

import (
	"sort"
	"strconv"
)

// FileID: 逻辑文档ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// Tree: 解码后的寄存器树（JSON 对象）。
// 值域：Tree、[]any、string、Number、bool、nil。
// 键序无语义；所有遍历按字典序进行，保证报告稳定。
type Tree map[string]any

// Number: 保留原始字面量的 JSON 数字（不做浮点转换，避免 64 位寄存器值失真）。
type Number string

// AsTree 将节点断言为对象；兼容测试中直接构造的 map[string]any。
func AsTree(v any) (Tree, bool) {
	switch t := v.(type) {
	case Tree:
		return t, true
	case map[string]any:
		return Tree(t), true
	default:
		return nil, false
	}
}

// Keys 返回按字典序排序的键。
func (t Tree) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Child 返回名为 key 的子对象；不存在或非对象时 ok=false。
func (t Tree) Child(key string) (Tree, bool) {
	v, ok := t[key]
	if !ok {
		return nil, false
	}
	return AsTree(v)
}

// String 返回名为 key 的字符串叶子。
func (t Tree) String(key string) (string, bool) {
	v, ok := t[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// LeafText 将标量叶子转为文本；非标量返回 ok=false。
func LeafText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case Number:
		return string(x), true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	default:
		return "", false
	}
}

// IsNumber 报告标量叶子是否为 JSON 数字（文本为十进制字面量）。
func IsNumber(v any) bool {
	switch v.(type) {
	case Number, int, int64, uint64, float64:
		return true
	default:
		return false
	}
}

// TypeName 返回节点的 JSON 类型名（用于类型不一致的差异条目）。
func TypeName(v any) string {
	if _, ok := AsTree(v); ok {
		return "object"
	}
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case []any:
		return "array"
	case Number, int, int64, uint64, float64:
		return "number"
	default:
		return "unknown"
	}
}
