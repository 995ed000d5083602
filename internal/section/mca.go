package section

import (
	"strings"

	"acdverify/internal/regtree"
)

// McaDetail: core* 与 uncore* 子树分别统计。
type McaDetail struct {
	Core   regtree.Tally
	Uncore regtree.Tally
}

func (s *Section) verifyMca() {
	d := &McaDetail{Core: regtree.NewTally(), Uncore: regtree.NewTally()}
	for _, key := range s.Raw.Keys() {
		switch {
		case strings.HasPrefix(key, "core"):
			s.Roots++
			d.Core = regtree.Reduce(s.Raw[key], key, s.classifier, d.Core, regtree.Tally.Step)
		case strings.HasPrefix(key, "uncore"):
			d.Uncore = regtree.Reduce(s.Raw[key], key, s.classifier, d.Uncore, regtree.Tally.Step)
		case strings.HasPrefix(key, regtree.ReservedPrefix):
		default:
			s.warnf("Key %s, not expected in %s", key, s.Name())
		}
	}
	s.Mca = d
	s.Tally = regtree.NewTally().Merge(d.Core).Merge(d.Uncore)
}

// InUncore 报告 MCA 段内路径是否位于 uncore* 子树。
func InUncore(path string) bool { return strings.HasPrefix(path, "uncore") }

func (d *McaDetail) rows(rootLabel string) []Row {
	return []Row{
		{Section: "MCA_Core", RootNodes: rootLabel, Regs: d.Core.Registers, Errors: d.Core.Histogram()},
		{Section: "MCA_Uncore", Regs: d.Uncore.Registers, Errors: d.Uncore.Histogram()},
	}
}
