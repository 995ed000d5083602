package checks

import (
	"sort"
	"strings"

	"acdverify/internal/regtree"
	"acdverify/internal/topology"
)

// Occurrence 为规则在某个寄存器上的一次命中记录。
type Occurrence struct {
	Value string `json:"value" yaml:"value"`
	Mask  uint64 `json:"mask,omitempty" yaml:"mask,omitempty"`
	Match uint64 `json:"match,omitempty" yaml:"match,omitempty"`
	// Error: 值为读取失败哨兵，计为不满足。
	Error     bool `json:"error,omitempty" yaml:"error,omitempty"`
	Satisfied bool `json:"satisfied" yaml:"satisfied"`
}

// Result 为一条规则在整份 dump 上的结果。
// Pass 为全部命中的逻辑或：任一满足的寄存器即通过。
type Result struct {
	Rule    string                  `json:"rule" yaml:"rule"`
	Matches map[string][]Occurrence `json:"matches" yaml:"matches"`
	Notes   []string                `json:"notes,omitempty" yaml:"notes,omitempty"`
	Pass    bool                    `json:"pass" yaml:"pass"`
}

// NewResult 返回空结果。
func NewResult(rule string) Result {
	return Result{Rule: rule, Matches: map[string][]Occurrence{}}
}

// Record 追加一次命中并更新 Pass。
func (r *Result) Record(path string, o Occurrence) {
	r.Matches[path] = append(r.Matches[path], o)
	r.Pass = r.Pass || o.Satisfied
}

// Note 追加一条说明（缺失版本、零命中等）。
func (r *Result) Note(msg string) { r.Notes = append(r.Notes, msg) }

// Merge 合并以 prefix 为作用域的子结果。
func (r *Result) Merge(prefix string, o Result) {
	for p, occ := range o.Matches {
		full := regtree.Join(prefix, p)
		r.Matches[full] = append(r.Matches[full], occ...)
	}
	r.Notes = append(r.Notes, o.Notes...)
	r.Pass = r.Pass || o.Pass
}

// Paths 返回排序后的命中路径。
func (r Result) Paths() []string {
	out := make([]string, 0, len(r.Matches))
	for p := range r.Matches {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Rule 为跨段检查规则；新规则在 pkg/registry 中按名登记。
type Rule interface {
	Name() string
	Check(d *topology.CrashDump) Result
}

// Run 依次执行规则，并按 scope 过滤命中。
func Run(d *topology.CrashDump, rules []Rule, scope string) []Result {
	out := make([]Result, 0, len(rules))
	for _, r := range rules {
		res := r.Check(d)
		out = append(out, res.Scoped(scope))
	}
	return out
}

// Scoped 按点分作用域过滤命中：每个 token 依次作为独立过滤条件，
// 且必须与路径中的某一整段相等；空 token 忽略。
// Pass 与 Notes 反映整份 dump，不随作用域改变。
func (r Result) Scoped(scope string) Result {
	tokens := scopeTokens(scope)
	if len(tokens) == 0 {
		return r
	}
	out := Result{Rule: r.Rule, Matches: map[string][]Occurrence{}, Notes: r.Notes, Pass: r.Pass}
	for p, occ := range r.Matches {
		if matchesScope(p, tokens) {
			out.Matches[p] = occ
		}
	}
	return out
}

func scopeTokens(scope string) []string {
	var out []string
	for _, t := range strings.Split(scope, ".") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func matchesScope(path string, tokens []string) bool {
	segs := strings.Split(path, ".")
	for _, t := range tokens {
		found := false
		for _, s := range segs {
			if s == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// JoinScope 由 cpu/core/thread 选项拼出作用域串。
func JoinScope(parts ...string) string {
	var keep []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keep = append(keep, p)
		}
	}
	return strings.Join(keep, ".")
}
