package regtree

import "sort"

// Tally 为遍历累加器：寄存器总数与哨兵错误（路径 → 分类）。
type Tally struct {
	Registers int
	Errors    map[string]string
}

// NewTally 返回空累加器。
func NewTally() Tally { return Tally{Errors: map[string]string{}} }

// Step 累加一个叶子；可直接作为 Reduce 的 step。
func (t Tally) Step(l Leaf) Tally {
	t.Registers++
	if l.Err {
		if t.Errors == nil {
			t.Errors = map[string]string{}
		}
		t.Errors[l.Path] = l.Category
	}
	return t
}

// Count 对 node 做一次完整计数。
func Count(node any, prefix string, c Classifier) Tally {
	return Reduce(node, prefix, c, NewTally(), Tally.Step)
}

// Merge 合并另一个累加器（路径不重叠）。
func (t Tally) Merge(o Tally) Tally {
	t.Registers += o.Registers
	if len(o.Errors) > 0 && t.Errors == nil {
		t.Errors = map[string]string{}
	}
	for k, v := range o.Errors {
		t.Errors[k] = v
	}
	return t
}

// Histogram 返回每种错误分类的出现次数。
func (t Tally) Histogram() map[string]int {
	h := make(map[string]int, len(t.Errors))
	for _, cat := range t.Errors {
		h[cat]++
	}
	return h
}

// ErrorPaths 返回排序后的错误路径。
func (t Tally) ErrorPaths() []string {
	out := make([]string, 0, len(t.Errors))
	for p := range t.Errors {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
