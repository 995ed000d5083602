package report

import (
	"fmt"
	"sort"

	"acdverify/internal/checks"
	"acdverify/internal/diff"
	"acdverify/internal/section"
	"acdverify/internal/topology"
	"acdverify/pkg/contract"
)

// Region 为报告区域名。
type Region string

const (
	RegionSummary   Region = "summary"
	RegionTable     Region = "table"
	RegionSelfCheck Region = "selfCheck"
	RegionChecks    Region = "checks"
	RegionCompare   Region = "compare"
)

// metadataPath 为 METADATA 段在报告中的路径。
const metadataPath = "metadata"

// Report 为单个输入文件的内存报告，交给编码器呈现。
type Report struct {
	File     contract.FileID `json:"file" yaml:"file"`
	Topology string          `json:"topology" yaml:"topology"`

	Summary *Summary `json:"summary,omitempty" yaml:"summary,omitempty"`
	Table   []Group  `json:"table,omitempty" yaml:"table,omitempty"`

	// SelfCheck: 段路径 → 自检错误（仅非空段）。
	SelfCheck        map[string][]string         `json:"self_check,omitempty" yaml:"self_check,omitempty"`
	SelfCheckOmitted map[string]int              `json:"self_check_omitted,omitempty" yaml:"self_check_omitted,omitempty"`
	TimeInfo         map[string]section.TimeInfo `json:"time_info,omitempty" yaml:"time_info,omitempty"`
	Checks           []checks.Result             `json:"checks,omitempty" yaml:"checks,omitempty"`
	Compare          *Compare                    `json:"compare,omitempty" yaml:"compare,omitempty"`
	Diagnostics      []string                    `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Summary 为摘要区域。
type Summary struct {
	Metadata section.MetadataSummary `json:"metadata" yaml:"metadata"`
	// Sections: 段路径 → 段摘要（如 uncore 的 chop）。
	Sections map[string]map[string]string `json:"sections,omitempty" yaml:"sections,omitempty"`
}

// Group 为错误统计表中同一作用域的行。
type Group struct {
	Scope string        `json:"scope" yaml:"scope"`
	Rows  []section.Row `json:"rows" yaml:"rows"`
}

// Compare 为比对区域。
type Compare struct {
	File contract.FileID `json:"file" yaml:"file"`
	// Diffs: 段路径 → 差异；无差异的段不出现。
	Diffs map[string][]diff.Entry `json:"diffs" yaml:"diffs"`
	// Counts: 段路径 → 差异条数（含 0）。
	Counts map[string]int `json:"counts" yaml:"counts"`
	// Special: 仅做顶层键比对的段标签。
	Special []string `json:"special_sections,omitempty" yaml:"special_sections,omitempty"`
}

// Options 为报告组装参数。
type Options struct {
	// Regions 为空时使用默认区域（summary/table/selfCheck，并按需追加 checks/compare）。
	Regions []Region

	CompareDump *topology.CrashDump
	CompareFile contract.FileID
	// Ignore: 段键名（如 "uncore"）→ 比对时忽略的路径。
	Ignore map[string][]string

	Rules []checks.Rule
	Scope string
}

// DefaultRegions 返回默认区域顺序。
func DefaultRegions(opts Options) []Region {
	out := []Region{RegionSummary, RegionTable, RegionSelfCheck}
	if len(opts.Rules) > 0 {
		out = append(out, RegionChecks)
	}
	if opts.CompareDump != nil {
		out = append(out, RegionCompare)
	}
	return out
}

type builder func(r *Report, d *topology.CrashDump, opts Options)

var builders = map[Region]builder{
	RegionSummary:   buildSummary,
	RegionTable:     buildTable,
	RegionSelfCheck: buildSelfCheck,
	RegionChecks:    buildChecks,
	RegionCompare:   buildCompare,
}

// KnownRegion 报告 r 是否为已知区域名。
func KnownRegion(r Region) bool {
	_, ok := builders[r]
	return ok
}

// Assemble 依次请求各区域，构造单个文件的报告。
// checks/compare 仅在提供规则/比对 dump 时生成。
func Assemble(id contract.FileID, d *topology.CrashDump, opts Options) (*Report, error) {
	regions := opts.Regions
	if len(regions) == 0 {
		regions = DefaultRegions(opts)
	}
	r := &Report{File: id, Topology: d.Topology.String()}
	for _, reg := range regions {
		b, ok := builders[reg]
		if !ok {
			return nil, fmt.Errorf("%w: unknown report region %q", contract.ErrInvalidInput, reg)
		}
		b(r, d, opts)
	}
	r.Diagnostics = diagnostics(d)
	return r, nil
}

func buildSummary(r *Report, d *topology.CrashDump, _ Options) {
	s := &Summary{Metadata: d.Metadata.MetadataSummary(d.Computes()), Sections: map[string]map[string]string{}}
	for _, sc := range d.Sections() {
		if info, ok := sc.Section.Summary(); ok {
			s.Sections[sc.Path()] = info
		}
	}
	r.Summary = s
}

func buildTable(r *Report, d *topology.CrashDump, _ Options) {
	r.Table = append(r.Table, Group{Scope: metadataPath, Rows: d.Metadata.Rows()})
	for _, cpu := range d.CPUs {
		for _, g := range cpu.Groups {
			grp := Group{Scope: g.Scope}
			for _, s := range g.Sections {
				grp.Rows = append(grp.Rows, s.Rows()...)
			}
			r.Table = append(r.Table, grp)
		}
	}
}

func buildSelfCheck(r *Report, d *topology.CrashDump, _ Options) {
	r.SelfCheck = map[string][]string{}
	r.TimeInfo = map[string]section.TimeInfo{metadataPath: d.Metadata.Time}
	if len(d.Metadata.SelfCheck) > 0 {
		r.SelfCheck[metadataPath] = d.Metadata.SelfCheck
	}
	for _, sc := range d.Sections() {
		if len(sc.Section.SelfCheck) > 0 {
			r.SelfCheck[sc.Path()] = sc.Section.SelfCheck
		}
		r.TimeInfo[sc.Path()] = sc.Section.Time
	}
}

func buildChecks(r *Report, d *topology.CrashDump, opts Options) {
	r.Checks = checks.Run(d, opts.Rules, opts.Scope)
}

func buildCompare(r *Report, d *topology.CrashDump, opts Options) {
	other := opts.CompareDump
	if other == nil {
		return
	}
	c := &Compare{File: opts.CompareFile, Diffs: map[string][]diff.Entry{}, Counts: map[string]int{}}
	special := map[string]struct{}{}
	record := func(path string, entries []diff.Entry) {
		c.Counts[path] = len(entries)
		if len(entries) > 0 {
			c.Diffs[path] = entries
		}
	}

	record(metadataPath, diff.Sections(d.Metadata, other.Metadata, opts.Ignore[section.Metadata.Key()]))
	seen := map[string]struct{}{}
	for _, sc := range d.Sections() {
		s := sc.Section
		seen[sc.Path()] = struct{}{}
		counterpart, _ := other.Lookup(sc.Scope, s.Kind)
		if s.Kind.ShallowDiff() {
			special[s.Kind.Label()] = struct{}{}
		}
		record(sc.Path(), diff.Sections(s, counterpart, opts.Ignore[s.Kind.Key()]))
	}
	// 仅存在于参考文件的段：其顶层键记为待测文件缺失。
	for _, sc := range other.Sections() {
		if _, ok := seen[sc.Path()]; ok {
			continue
		}
		s := sc.Section
		record(sc.Path(), diff.Compare(contract.Tree{}, s.Raw, diff.Options{Ignore: opts.Ignore[s.Kind.Key()], Shallow: true}))
	}
	for label := range special {
		c.Special = append(c.Special, label)
	}
	sort.Strings(c.Special)
	r.Compare = c
}

// diagnostics 汇总构造期的非致命诊断，按段路径加前缀。
func diagnostics(d *topology.CrashDump) []string {
	out := append([]string(nil), d.Diagnostics...)
	for _, msg := range d.Metadata.Diagnostics {
		out = append(out, metadataPath+": "+msg)
	}
	for _, sc := range d.Sections() {
		for _, msg := range sc.Section.Diagnostics {
			out = append(out, sc.Path()+": "+msg)
		}
	}
	return out
}

// Check3Strike 返回三振检查结果；未执行该规则时 ok=false。
func (r *Report) Check3Strike() (pass, ok bool) {
	for _, res := range r.Checks {
		if res.Rule == checks.ThreeStrikeName {
			return res.Pass, true
		}
	}
	return false, false
}

// Trimmed 返回自检列表截断为前 n 项的浅拷贝，截掉的条数记入 SelfCheckOmitted。
// n <= 0 时原样返回。
func (r *Report) Trimmed(n int) *Report {
	if n <= 0 {
		return r
	}
	cp := *r
	cp.SelfCheck = make(map[string][]string, len(r.SelfCheck))
	cp.SelfCheckOmitted = nil
	for path, errs := range r.SelfCheck {
		if len(errs) > n {
			if cp.SelfCheckOmitted == nil {
				cp.SelfCheckOmitted = map[string]int{}
			}
			cp.SelfCheckOmitted[path] = len(errs) - n
			errs = errs[:n]
		}
		cp.SelfCheck[path] = errs
	}
	return &cp
}

// ErrorCount 返回全部段的哨兵错误总数（含 METADATA）。
func (r *Report) ErrorCount() int {
	n := 0
	for _, g := range r.Table {
		for _, row := range g.Rows {
			for _, c := range row.Errors {
				n += c
			}
		}
	}
	return n
}
