package section

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"acdverify/internal/regtree"
	"acdverify/pkg/contract"
)

const (
	// ChopRegister 的 bit 7:6 为物理 chop。
	ChopRegister = "B31_D30_F3_0x94"
	vendorID     = 0x8086
	// rdiamsrPrefix 开头的键不是 PCI 配置空间寄存器，不参与 BDF 分组。
	rdiamsrPrefix = "RDIAMSR"
)

var chopClasses = [4]string{"LCC", "MCC", "HCC", "XCC"}

// unreachableBDFs: SPR-SP 的 Socket0 上已知不可访问的 BDF。
var unreachableBDFs = map[string]struct{}{
	"B00_D01_F0": {}, "B00_D03_F0": {}, "B00_D05_F0": {}, "B00_D07_F0": {},
}

const unreachableComment = "PI5.PXP0.PCIEG5 registers for SPR-SP on Socket0 are not accessible. This is expected."

// BDFStat 为单个 bus-device-function 分组的统计。
type BDFStat struct {
	Total      int
	WithErrors int
	// Categories: 组内错误分类 → 次数。
	Categories map[string]int
}

// UncoreDetail 为 uncore 段明细。
type UncoreDetail struct {
	BDFs map[string]*BDFStat
	// Chop 为空表示寄存器缺失；"N/A" 表示寄存器读取失败。
	Chop string
	// Unreachable: 当前 CPU/产品组合下豁免报错的 BDF 集合是否生效。
	Unreachable bool
}

// SplitBDF 将寄存器键拆为 BDF 分组与偏移（偏移大写）。
func SplitBDF(key string) (bdf, offset string) {
	i := strings.LastIndexByte(key, '_')
	if i < 0 {
		return "", strings.ToUpper(key)
	}
	return key[:i], strings.ToUpper(key[i+1:])
}

// uncoreAcc 为 uncore 遍历累加器：计数、BDF 分组统计与自检错误。
type uncoreAcc struct {
	regtree.Tally
	bdfs      map[string]*BDFStat
	selfCheck []string
}

func (a uncoreAcc) step(l regtree.Leaf) uncoreAcc {
	bdf, offset := SplitBDF(l.Key)
	var st *BDFStat
	if !strings.HasPrefix(bdf, rdiamsrPrefix) {
		st = a.bdfs[bdf]
		if st == nil {
			st = &BDFStat{Categories: map[string]int{}}
			a.bdfs[bdf] = st
		}
		st.Total++
	}
	switch {
	case l.Err:
		if st != nil {
			st.WithErrors++
			st.Categories[l.Category]++
		}
	case strings.HasSuffix(offset, "0X0"):
		// vendor ID 偏移只允许 0x8086 或 0
		if v, err := LeafUint(l); err != nil || (v != vendorID && v != 0) {
			a.selfCheck = append(a.selfCheck, fmt.Sprintf("%s has invalid value %s", l.Path, l.Value))
		}
	}
	a.Tally = a.Tally.Step(l)
	return a
}

func (s *Section) verifyUncore(opts Options) {
	acc := regtree.Reduce(s.Raw, "", s.classifier,
		uncoreAcc{Tally: regtree.NewTally(), bdfs: map[string]*BDFStat{}}, uncoreAcc.step)
	s.Tally = acc.Tally
	s.SelfCheck = append(s.SelfCheck, acc.selfCheck...)
	s.Uncore = &UncoreDetail{
		BDFs:        acc.bdfs,
		Chop:        s.chop(),
		Unreachable: opts.CPU == "cpu0" && strings.EqualFold(trimLastNibble(opts.CPUID), "0x806f"),
	}
}

// chop 由 ChopRegister 的 bit 7:6 得出 die 尺寸等级。
func (s *Section) chop() string {
	var (
		l  regtree.Leaf
		ok bool
	)
	if v, direct := s.Raw[ChopRegister]; direct {
		text, _ := contract.LeafText(v)
		l, ok = regtree.Leaf{Key: ChopRegister, Value: text, Number: contract.IsNumber(v)}, true
	} else {
		l, ok = findLeaf(s.Raw, ChopRegister, s.classifier)
	}
	if !ok {
		s.warnf("%s was not found in %s", ChopRegister, s.Name())
		return ""
	}
	if s.classifier.IsError(l.Value) {
		return "N/A"
	}
	n, err := LeafUint(l)
	if err != nil {
		s.warnf("%s has unexpected value %s", ChopRegister, l.Value)
		return ""
	}
	return chopClasses[(n&0xC0)>>6]
}

// findLeaf 查找末段键为 key 的叶子（含哨兵）。
func findLeaf(node any, key string, c regtree.Classifier) (regtree.Leaf, bool) {
	var (
		out regtree.Leaf
		ok  bool
	)
	regtree.Walk(node, "", c, func(l regtree.Leaf) {
		if !ok && l.Key == key {
			out, ok = l, true
		}
	})
	return out, ok
}

// ParseHex 解析 0x 前缀可选的十六进制串。
func ParseHex(s string) (uint64, error) {
	t := strings.TrimSpace(s)
	if len(t) > 1 && t[0] == '0' && (t[1] == 'x' || t[1] == 'X') {
		t = t[2:]
	}
	return strconv.ParseUint(t, 16, 64)
}

// LeafUint 解析寄存器叶子：JSON 数字按十进制，字符串按十六进制。
func LeafUint(l regtree.Leaf) (uint64, error) {
	if l.Number {
		return strconv.ParseUint(strings.TrimSpace(l.Value), 10, 64)
	}
	return ParseHex(l.Value)
}

// IsZero 报告叶子是否为字面零（0x0、0x0000、数字 0 等）。
func IsZero(l regtree.Leaf) bool {
	v, err := LeafUint(l)
	return err == nil && v == 0
}

// rows 仅为含错误的 BDF 生成行，错误以 "占比% (次数)" 表示。
func (d *UncoreDetail) rows() []Row {
	names := make([]string, 0, len(d.BDFs))
	for name, st := range d.BDFs {
		if st.WithErrors > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]Row, 0, len(names))
	for _, name := range names {
		st := d.BDFs[name]
		row := Row{
			Section:        "uncore-" + name,
			RootNodes:      fmt.Sprintf("offsets: %d", st.Total),
			Regs:           st.Total,
			RegsWithErrors: st.WithErrors,
			Shares:         map[string]string{},
		}
		for cat, n := range st.Categories {
			pct := math.Round(float64(n)*1000/float64(st.Total)) / 10
			row.Shares[cat] = fmt.Sprintf("%s%% (%d)", strconv.FormatFloat(pct, 'f', -1, 64), n)
		}
		if _, ok := unreachableBDFs[name]; ok && d.Unreachable {
			row.Expected = true
			row.Comment = unreachableComment
		}
		out = append(out, row)
	}
	return out
}
