package regtree

import (
	"strings"

	"acdverify/pkg/contract"
)

// ReservedPrefix 开头的键为结构注记（版本、耗时等），不计为寄存器。
const ReservedPrefix = "_"

// Leaf 为一次遍历中访问到的寄存器叶子。
type Leaf struct {
	Path     string // 相对遍历起点的点分路径
	Key      string // 末段键名
	Value    string // 文本化后的原值
	Number   bool   // 原值为 JSON 数字：Value 为十进制
	Err      bool
	Category string
}

// Join 拼接点分路径；prefix 为空时直接返回 key。
func Join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// LastSegment 返回点分路径的末段。
func LastSegment(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Reduce 以纯归约方式遍历 node：每个可计数叶子调用一次 step，并将其返回值作为新的累加器。
// 对象按键字典序递归；数组与 null 不计数；保留前缀键的叶子被跳过。
func Reduce[A any](node any, prefix string, c Classifier, acc A, step func(A, Leaf) A) A {
	return reduce(node, prefix, LastSegment(prefix), c, acc, step)
}

func reduce[A any](node any, path, key string, c Classifier, acc A, step func(A, Leaf) A) A {
	if t, ok := contract.AsTree(node); ok {
		for _, k := range t.Keys() {
			acc = reduce(t[k], Join(path, k), k, c, acc, step)
		}
		return acc
	}
	if strings.HasPrefix(key, ReservedPrefix) {
		return acc
	}
	text, ok := contract.LeafText(node)
	if !ok {
		return acc
	}
	if c == nil {
		c = Default
	}
	leaf := Leaf{Path: path, Key: key, Value: text, Number: contract.IsNumber(node)}
	if c.IsError(text) {
		leaf.Err = true
		leaf.Category = c.Category(text)
	}
	return step(acc, leaf)
}

// Walk 为 Reduce 的访问者形式。
func Walk(node any, prefix string, c Classifier, visit func(Leaf)) {
	Reduce(node, prefix, c, struct{}{}, func(s struct{}, l Leaf) struct{} {
		visit(l)
		return s
	})
}

// Find 返回首个末段键等于 key 且非哨兵的叶子（按遍历顺序）。
func Find(node any, key string, c Classifier) (Leaf, bool) {
	var (
		found Leaf
		ok    bool
	)
	Walk(node, "", c, func(l Leaf) {
		if ok || l.Key != key || l.Err {
			return
		}
		found, ok = l, true
	})
	return found, ok
}
