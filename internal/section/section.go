package section

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"acdverify/internal/regtree"
	"acdverify/pkg/contract"
)

// VersionKey 为段版本字段。
const VersionKey = "_version"

// Options 为段构造的上下文参数。
type Options struct {
	// Classifier 为哨兵判定器；nil 使用 regtree.Default。
	Classifier regtree.Classifier
	// CPU/CPUID 仅 uncore 使用（已知不可达 BDF 的豁免判断）。
	CPU   string
	CPUID string
}

// Section 为一次构造完成、之后只读的寄存器段。
// 计数、错误与自检在构造时单次遍历得出，之后不再变化。
type Section struct {
	Kind Kind
	Raw  contract.Tree

	Tally       regtree.Tally
	SelfCheck   []string
	Diagnostics []string
	Time        TimeInfo
	// Roots: 符合命名约定的顶层子项数量（core*/cpu*）。
	Roots int

	// 以下为种类专属明细，仅对应种类非空。
	Mca    *McaDetail
	Uncore *UncoreDetail
	Meta   *MetaDetail

	classifier regtree.Classifier
}

// TimeInfo: 耗时键（秒）→ 数值；多于一项时附加 TOTAL。
type TimeInfo map[string]float64

// Row 为错误统计表的一行。
type Row struct {
	Section        string            `json:"section" yaml:"section"`
	RootNodes      string            `json:"root_nodes,omitempty" yaml:"root_nodes,omitempty"`
	Regs           int               `json:"regs" yaml:"regs"`
	RegsWithErrors int               `json:"regs_with_errors,omitempty" yaml:"regs_with_errors,omitempty"`
	Errors         map[string]int    `json:"errors,omitempty" yaml:"errors,omitempty"`
	Shares         map[string]string `json:"shares,omitempty" yaml:"shares,omitempty"`
	Expected       bool              `json:"expected,omitempty" yaml:"expected,omitempty"`
	Comment        string            `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// New 从父节点中取出 k 对应的子树并构造段。
// 父节点不含该键时返回 (nil, false)，调用方负责记录诊断。
func New(k Kind, parent contract.Tree, opts Options) (*Section, bool) {
	raw, ok := parent.Child(k.Key())
	if !ok {
		return nil, false
	}
	return FromTree(k, raw, opts), true
}

// FromTree 直接以 raw 为段内容构造。
func FromTree(k Kind, raw contract.Tree, opts Options) *Section {
	c := opts.Classifier
	if c == nil {
		c = regtree.Default
	}
	s := &Section{Kind: k, Raw: raw, classifier: c}
	switch k {
	case Metadata:
		s.verifyMetadata()
	case BigCore:
		s.verifyBigCore()
	case Mca:
		s.verifyMca()
	case Uncore:
		s.verifyUncore(opts)
	default:
		s.verifyBase()
	}
	s.checkVersionKey()
	if k == Metadata {
		s.Time = s.metadataTime()
	} else {
		s.Time = s.sectionTime()
	}
	return s
}

// Name 返回段名。
func (s *Section) Name() string { return s.Kind.Key() }

// Classifier 返回构造时使用的哨兵判定器。
func (s *Section) Classifier() regtree.Classifier { return s.classifier }

// HasVersion 报告版本字段是否存在。
func (s *Section) HasVersion() bool {
	_, ok := s.Raw[VersionKey]
	return ok
}

// Rows 返回错误统计表的行；mca 拆分 core/uncore，uncore 附加按 BDF 的行。
func (s *Section) Rows() []Row {
	switch {
	case s.Mca != nil:
		return s.Mca.rows(s.rootLabel())
	case s.Uncore != nil:
		return append([]Row{s.baseRow()}, s.Uncore.rows()...)
	default:
		return []Row{s.baseRow()}
	}
}

// Summary 返回段对摘要区的贡献；无贡献的种类返回 ok=false。
func (s *Section) Summary() (map[string]string, bool) {
	if s.Uncore == nil {
		return nil, false
	}
	return map[string]string{"chop": s.Uncore.Chop}, true
}

func (s *Section) baseRow() Row {
	return Row{
		Section:   s.Name(),
		RootNodes: s.rootLabel(),
		Regs:      s.Tally.Registers,
		Errors:    s.Tally.Histogram(),
	}
}

func (s *Section) rootLabel() string {
	switch {
	case s.Kind == Metadata:
		return fmt.Sprintf("sockets: %d", s.Roots)
	case kindRules[s.Kind].countRoots:
		return fmt.Sprintf("cores: %d", s.Roots)
	default:
		return ""
	}
}

func (s *Section) warnf(format string, args ...any) {
	s.Diagnostics = append(s.Diagnostics, fmt.Sprintf(format, args...))
}

// scanRoots 检查顶层键命名约定并统计根节点数。
func (s *Section) scanRoots() {
	r := kindRules[s.Kind]
	for _, key := range s.Raw.Keys() {
		switch {
		case r.rootPrefix != "" && strings.HasPrefix(key, r.rootPrefix):
			if r.countRoots {
				s.Roots++
			}
		case strings.HasPrefix(key, regtree.ReservedPrefix):
		case r.rootPrefix != "":
			s.warnf("Key %s, not expected in %s", key, s.Name())
		}
	}
}

func (s *Section) verifyBase() {
	s.scanRoots()
	s.Tally = regtree.Count(s.Raw, "", s.classifier)
	if s.Kind == PmInfo && s.Roots == 0 {
		s.warnf("No cores found in %s", s.Name())
	}
}

func (s *Section) checkVersionKey() {
	v, ok := s.Raw[VersionKey]
	if !ok {
		s.SelfCheck = append(s.SelfCheck, fmt.Sprintf("%s key not present in %s", VersionKey, s.Name()))
		return
	}
	text, ok := contract.LeafText(v)
	if !ok || s.classifier.IsError(text) {
		return
	}
	s.SelfCheck = append(s.SelfCheck, checkVersion(s.Kind, text)...)
}

func (s *Section) sectionTime() TimeInfo {
	ti := TimeInfo{}
	for _, key := range s.Raw.Keys() {
		if !strings.HasPrefix(key, "_time") {
			continue
		}
		if f, ok := s.seconds(key, s.Raw[key]); ok {
			ti[key] = f
		}
	}
	switch len(ti) {
	case 0:
		s.warnf("%s has no time key", s.Name())
	case 1:
	default:
		var sum float64
		for _, v := range ti {
			sum += v
		}
		ti["TOTAL"] = round2(sum)
	}
	return ti
}

// seconds 解析形如 "0.25s" 的耗时值。
func (s *Section) seconds(key string, v any) (float64, bool) {
	text, ok := contract.LeafText(v)
	if !ok {
		s.warnf("%s in %s is not a scalar", key, s.Name())
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(strings.Trim(text, "s")), 64)
	if err != nil {
		s.warnf("%s in %s has invalid time %q", key, s.Name(), text)
		return 0, false
	}
	return f, true
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
