package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acdverify/internal/section"
	"acdverify/pkg/contract"
)

func sample() contract.Tree {
	return contract.Tree{
		"_version":       "0x806f",
		"B00_D00_F0_0x0": "0x8086",
		"list":           []any{"0x1", "0x2"},
		"nested": contract.Tree{
			"reg_a": "0x1",
			"reg_b": contract.Number("7"),
		},
	}
}

func TestCompareIdempotent(t *testing.T) {
	assert.Empty(t, Compare(sample(), sample(), Options{}))
	assert.Empty(t, Compare(sample(), sample(), Options{Shallow: true}))
}

func TestCompareRules(t *testing.T) {
	proc := sample()
	comp := sample()
	delete(proc, "B00_D00_F0_0x0")
	proc["only_proc"] = "0x5"
	proc["list"] = []any{"0x1"}
	proc["nested"].(contract.Tree)["reg_a"] = "0x2"
	proc["nested"].(contract.Tree)["reg_b"] = "7"
	comp["nested"].(contract.Tree)["reg_c"] = contract.Tree{"deep": "0x0"}

	got := Compare(proc, comp, Options{})
	want := []Entry{
		{Path: "B00_D00_F0_0x0", Process: section.NotPresent, Compare: "0x8086"},
		{Path: "list", Process: []any{"0x1"}, Compare: []any{"0x1", "0x2"}},
		{Path: "nested.reg_a", Process: "0x2", Compare: "0x1"},
		{Path: "nested.reg_b", Process: "string", Compare: "number", TypeMismatch: true},
		{Path: "nested.reg_c", Process: section.NotPresent, Compare: ""},
		{Path: "only_proc", Process: "0x5", Compare: section.NotPresent},
	}
	assert.Equal(t, want, got)
}

func TestCompareIgnoreListSuppressesEveryKind(t *testing.T) {
	proc := sample()
	comp := sample()
	delete(proc, "B00_D00_F0_0x0")
	proc["nested"].(contract.Tree)["reg_a"] = "0x2"
	proc["nested"].(contract.Tree)["reg_b"] = "7"
	proc["list"] = []any{}

	ignore := []string{"B00_D00_F0_0x0", "nested.reg_a", "nested.reg_b", "list"}
	assert.Empty(t, Compare(proc, comp, Options{Ignore: ignore}))
}

func TestCompareShallow(t *testing.T) {
	proc := contract.Tree{"core0": contract.Tree{"r": "0x1"}, "core1": contract.Tree{}}
	comp := contract.Tree{"core0": contract.Tree{"r": "0x2"}, "core2": contract.Tree{}}

	got := Compare(proc, comp, Options{Shallow: true})
	require.Len(t, got, 2)
	assert.Equal(t, Entry{Path: "core1", Process: "", Compare: section.NotPresent}, got[0])
	assert.Equal(t, Entry{Path: "core2", Process: section.NotPresent, Compare: ""}, got[1])
}

func TestSectionsAbsentCounterpart(t *testing.T) {
	raw := contract.Tree{"_version": "0x906f", "_time": "0.1s", "r0": "0x1"}
	proc := section.FromTree(section.Tor, raw, section.Options{})

	got := Sections(proc, nil, []string{"_time"})
	assert.Equal(t, []Entry{
		{Path: "_version", Process: "", Compare: section.NotPresent},
		{Path: "r0", Process: "", Compare: section.NotPresent},
	}, got)

	assert.Empty(t, Sections(proc, section.FromTree(section.Tor, raw, section.Options{}), nil))
}

func TestSectionsShallowKinds(t *testing.T) {
	a := section.FromTree(section.Mca, contract.Tree{"core0": contract.Tree{"bank0_status": "0x1"}}, section.Options{})
	b := section.FromTree(section.Mca, contract.Tree{"core0": contract.Tree{"bank0_status": "0x2"}}, section.Options{})
	assert.Empty(t, Sections(a, b, nil), "MCA 只比较顶层键")

	c := section.FromTree(section.Tor, contract.Tree{"r0": "0x1"}, section.Options{})
	d := section.FromTree(section.Tor, contract.Tree{"r0": "0x2"}, section.Options{})
	assert.Len(t, Sections(c, d, nil), 1)
}
