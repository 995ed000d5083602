package diff

import (
	"reflect"
	"sort"

	"acdverify/internal/regtree"
	"acdverify/internal/section"
	"acdverify/pkg/contract"
)

// Entry 为一条差异；Process/Compare 分别为待测文件与参考文件一侧的值。
// TypeMismatch 时两侧为类型名。
type Entry struct {
	Path         string `json:"path" yaml:"path"`
	Process      any    `json:"process" yaml:"process"`
	Compare      any    `json:"compare" yaml:"compare"`
	TypeMismatch bool   `json:"type_mismatch,omitempty" yaml:"type_mismatch,omitempty"`
}

// Options 为比对参数。
type Options struct {
	// Ignore 中的点分路径不出现在结果里。
	Ignore []string
	// Shallow 仅比较顶层键的存在性。
	Shallow bool
}

type differ struct {
	ignore  map[string]struct{}
	shallow bool
	out     map[string]Entry
}

// Compare 递归比对两棵树，结果按路径排序且路径唯一。
// 仅一侧存在的键记为 "Not present"，另一侧值仅在为字符串时保留。
func Compare(process, compare contract.Tree, opts Options) []Entry {
	d := &differ{ignore: map[string]struct{}{}, shallow: opts.Shallow, out: map[string]Entry{}}
	for _, p := range opts.Ignore {
		d.ignore[p] = struct{}{}
	}
	d.object("", process, compare)
	return d.sorted()
}

// Absent 用于参考文件中缺少对应段：present 的每个顶层键记为对侧缺失。
func Absent(present contract.Tree, opts Options) []Entry {
	d := &differ{ignore: map[string]struct{}{}, out: map[string]Entry{}}
	for _, p := range opts.Ignore {
		d.ignore[p] = struct{}{}
	}
	for _, key := range present.Keys() {
		d.add(Entry{Path: key, Process: "", Compare: section.NotPresent})
	}
	return d.sorted()
}

// Sections 比对两个同种类段；compare 为 nil 表示参考文件中未检测到该段。
// big_core/MCA/PM_info 只比较顶层键。
func Sections(process, compare *section.Section, ignore []string) []Entry {
	opts := Options{Ignore: ignore, Shallow: process.Kind.ShallowDiff()}
	if compare == nil {
		return Absent(process.Raw, opts)
	}
	return Compare(process.Raw, compare.Raw, opts)
}

func (d *differ) object(path string, proc, comp contract.Tree) {
	for _, key := range comp.Keys() {
		p := regtree.Join(path, key)
		pv, ok := proc[key]
		if !ok {
			d.add(Entry{Path: p, Process: section.NotPresent, Compare: stringOrEmpty(comp[key])})
			continue
		}
		if d.shallow {
			continue
		}
		d.value(p, pv, comp[key])
	}
	for _, key := range proc.Keys() {
		if _, ok := comp[key]; ok {
			continue
		}
		d.add(Entry{Path: regtree.Join(path, key), Process: stringOrEmpty(proc[key]), Compare: section.NotPresent})
	}
}

func (d *differ) value(path string, proc, comp any) {
	pt, ct := contract.TypeName(proc), contract.TypeName(comp)
	if pt != ct {
		d.add(Entry{Path: path, Process: pt, Compare: ct, TypeMismatch: true})
		return
	}
	if pt == "object" {
		po, _ := contract.AsTree(proc)
		co, _ := contract.AsTree(comp)
		d.object(path, po, co)
		return
	}
	if !reflect.DeepEqual(proc, comp) {
		d.add(Entry{Path: path, Process: proc, Compare: comp})
	}
}

func (d *differ) add(e Entry) {
	if _, skip := d.ignore[e.Path]; skip {
		return
	}
	d.out[e.Path] = e
}

func (d *differ) sorted() []Entry {
	out := make([]Entry, 0, len(d.out))
	for _, e := range d.out {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func stringOrEmpty(v any) string {
	s, _ := v.(string)
	return s
}
