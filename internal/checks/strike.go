package checks

import (
	"fmt"
	"strings"

	"acdverify/internal/regtree"
	"acdverify/internal/section"
	"acdverify/internal/topology"
)

// ThreeStrikeName 为三振检查的规则名。
const ThreeStrikeName = "check3strike"

// 各段三振状态寄存器的掩码：(value & mask) == mask 即满足。
const (
	BigCoreMC3Mask uint64 = 0x9000000000800400
	McaCbo5Mask    uint64 = 0x90000000000c017a
)

const (
	mc3Suffix    = "_mc3_status"
	cbo5Register = "cbo5_status"
	errSrcLogKey = "mca_err_src_log"
)

// ThreeStrike 检查 big_core 的 *_mc3_status、MCA uncore 的 cbo5_status
// 以及 METADATA 中每个 CPU 的 mca_err_src_log。
type ThreeStrike struct{}

func (ThreeStrike) Name() string { return ThreeStrikeName }

func (t ThreeStrike) Check(d *topology.CrashDump) Result {
	res := NewResult(ThreeStrikeName)
	if d.Metadata != nil {
		res.Merge("metadata", t.Metadata(d.Metadata))
	}
	for _, sc := range d.Sections() {
		switch sc.Section.Kind {
		case section.BigCore, section.Mca:
			res.Merge(sc.Path(), t.Section(sc.Section))
		}
	}
	return res
}

// Section 在单个 big_core 或 MCA 段上执行检查，路径相对于段。
func (ThreeStrike) Section(s *section.Section) Result {
	res := NewResult(ThreeStrikeName)
	var (
		mask  uint64
		count int
		match func(regtree.Leaf) bool
	)
	switch s.Kind {
	case section.BigCore:
		mask = BigCoreMC3Mask
		match = func(l regtree.Leaf) bool { return strings.HasSuffix(l.Key, mc3Suffix) }
	case section.Mca:
		mask = McaCbo5Mask
		match = func(l regtree.Leaf) bool { return l.Key == cbo5Register && section.InUncore(l.Path) }
	default:
		return res
	}
	regtree.Walk(s.Raw, "", s.Classifier(), func(l regtree.Leaf) {
		if !match(l) {
			return
		}
		count++
		res.Record(l.Path, strikeOccurrence(l, mask, &res))
	})
	if !s.HasVersion() {
		res.Note(fmt.Sprintf("%s key not present in %s", section.VersionKey, s.Name()))
	}
	if count == 0 {
		if s.Kind == section.BigCore {
			res.Note(fmt.Sprintf("0 *%s regs were found in %s", mc3Suffix, s.Name()))
		} else {
			res.Note(fmt.Sprintf("Reg %s was not found in %s", cbo5Register, s.Name()))
		}
	}
	return res
}

func strikeOccurrence(l regtree.Leaf, mask uint64, res *Result) Occurrence {
	o := Occurrence{Value: l.Value, Mask: mask, Match: mask}
	if l.Err {
		o.Error = true
		return o
	}
	v, err := section.LeafUint(l)
	if err != nil {
		res.Note(fmt.Sprintf("register %s has an unexpected value %s", l.Path, l.Value))
		return o
	}
	o.Satisfied = v&mask == mask
	return o
}

// Metadata 检查每个 CPU 的 mca_err_src_log：存在且非 0x0 即满足。
func (ThreeStrike) Metadata(s *section.Section) Result {
	res := NewResult(ThreeStrikeName)
	if s.Meta == nil {
		return res
	}
	for _, cpu := range s.Meta.CPUs {
		l, ok := regtree.Find(s.Raw[cpu], errSrcLogKey, s.Classifier())
		if !ok {
			res.Note(fmt.Sprintf("%s %s key not present in %s", cpu, errSrcLogKey, s.Name()))
			continue
		}
		zero := section.IsZero(l)
		if zero {
			res.Note(fmt.Sprintf("%s %s is %s", cpu, errSrcLogKey, l.Value))
		}
		res.Record(regtree.Join(cpu, l.Path), Occurrence{Value: l.Value, Satisfied: !zero})
	}
	return res
}
