package section

import (
	"fmt"
	"strings"

	"acdverify/internal/regtree"
)

// sizePrefixes: 各产品家族合法的 size 前缀（含/不含前导限定字段两种编码）。
var sizePrefixes = map[string][]string{
	"ICX":    {"0X05F8", "0X020005F8"},
	"SPR":    {"0X05A8", "0X030005A8"},
	"SPR C0": {"0X05B0", "0X030005B0"},
}

// apicBasePrefixes: CORE_CR_APIC_BASE 的两个合法高地址区间。
var apicBasePrefixes = []string{"0XFEE00", "0XFFFFF"}

// bigCoreAcc 为 big_core 遍历累加器：计数与自检错误。
type bigCoreAcc struct {
	regtree.Tally
	selfCheck []string
}

func (a bigCoreAcc) step(l regtree.Leaf) bigCoreAcc {
	if !l.Err {
		switch l.Key {
		case "size":
			if !validSize(l.Value) {
				a.selfCheck = append(a.selfCheck, fmt.Sprintf("%s has invalid size %s", l.Path, l.Value))
			}
		case "CORE_CR_APIC_BASE":
			if !hasAnyPrefix(strings.ToUpper(l.Value), apicBasePrefixes) {
				a.selfCheck = append(a.selfCheck, fmt.Sprintf("%s has invalid value %s", l.Path, l.Value))
			}
		}
	}
	a.Tally = a.Tally.Step(l)
	return a
}

func (s *Section) verifyBigCore() {
	s.scanRoots()
	acc := regtree.Reduce(s.Raw, "", s.classifier, bigCoreAcc{Tally: regtree.NewTally()}, bigCoreAcc.step)
	s.Tally = acc.Tally
	s.SelfCheck = append(s.SelfCheck, acc.selfCheck...)
}

func validSize(v string) bool {
	u := strings.ToUpper(v)
	for _, prefixes := range sizePrefixes {
		if hasAnyPrefix(u, prefixes) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
