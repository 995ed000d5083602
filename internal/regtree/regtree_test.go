package regtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acdverify/pkg/contract"
)

func TestSentinels(t *testing.T) {
	tests := map[string]struct {
		value    string
		isErr    bool
		category string
	}{
		"普通值":      {value: "0x1f", isErr: false},
		"N/A":      {value: "N/A", isErr: true, category: "N/A"},
		"完成码注记":    {value: "0x0,CC:0x80", isErr: true, category: "CC:0x80"},
		"完成码与返回码":  {value: "0x0,CC:0x80,RC:0x3", isErr: true, category: "CC:0x80,RC:0x3"},
		"UA":       {value: "UA:0x11", isErr: true, category: "UA:0x11"},
		"UA 与 DF":  {value: "UA:0x11,DF:0x2", isErr: true, category: "UA:0x11,DF:0x2"},
		"逗号但非注记":   {value: "0x1,0x2", isErr: false},
		"末尾逗号":     {value: "0x1,", isErr: false},
		"空串":       {value: "", isErr: false},
		"小写 rc 注记": {value: "0x5,rc:0x1", isErr: true, category: "rc:0x1"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.isErr, Default.IsError(tc.value))
			assert.Equal(t, tc.category, Default.Category(tc.value))
		})
	}
}

func TestCountSkipsReservedAndNonScalars(t *testing.T) {
	tree := contract.Tree{
		"_version": "0x4002a",
		"_time":    "0.5s",
		"core0": contract.Tree{
			"reg_a":    "0x1",
			"reg_b":    "N/A",
			"_comment": "x",
			"list":     []any{"0x1", "0x2"},
			"nothing":  nil,
			"num":      contract.Number("3"),
			"enabled":  true,
		},
	}

	tally := Count(tree, "", nil)
	assert.Equal(t, 4, tally.Registers)
	assert.Equal(t, map[string]string{"core0.reg_b": "N/A"}, tally.Errors)
	assert.Equal(t, map[string]int{"N/A": 1}, tally.Histogram())
}

func TestLeafNumberFlag(t *testing.T) {
	tree := contract.Tree{"dec": contract.Number("192"), "hex": "0xC0", "n": 7}
	got := map[string]bool{}
	Walk(tree, "", nil, func(l Leaf) { got[l.Key] = l.Number })
	assert.Equal(t, map[string]bool{"dec": true, "hex": false, "n": true}, got)
}

func TestReduceOrderAndPrefix(t *testing.T) {
	tree := contract.Tree{
		"b": "0x2",
		"a": contract.Tree{"z": "0x3", "y": "0x4"},
	}
	paths := Reduce(tree, "cpu0", nil, []string(nil), func(acc []string, l Leaf) []string {
		return append(acc, l.Path)
	})
	assert.Equal(t, []string{"cpu0.a.y", "cpu0.a.z", "cpu0.b"}, paths)
}

func TestReduceLeafAtRootUsesPrefixKey(t *testing.T) {
	var got []Leaf
	Walk("0x0,CC:0x80", "core0.status", nil, func(l Leaf) { got = append(got, l) })
	require.Len(t, got, 1)
	assert.Equal(t, "status", got[0].Key)
	assert.True(t, got[0].Err)

	got = nil
	Walk("0x1", "_version", nil, func(l Leaf) { got = append(got, l) })
	assert.Empty(t, got, "保留前缀键不应计数")
}

func TestFindSkipsSentinels(t *testing.T) {
	tree := contract.Tree{
		"a": contract.Tree{"cpuid": "N/A"},
		"b": contract.Tree{"cpuid": "0x806f8"},
	}
	l, ok := Find(tree, "cpuid", nil)
	require.True(t, ok)
	assert.Equal(t, "b.cpuid", l.Path)
	assert.Equal(t, "0x806f8", l.Value)

	_, ok = Find(tree, "missing", nil)
	assert.False(t, ok)
}

func TestTallyMerge(t *testing.T) {
	a := Count(contract.Tree{"x": "N/A"}, "core", nil)
	b := Count(contract.Tree{"y": "0x1", "z": "UA:0x1"}, "uncore", nil)
	m := NewTally().Merge(a).Merge(b)
	assert.Equal(t, 3, m.Registers)
	assert.Equal(t, []string{"core.x", "uncore.z"}, m.ErrorPaths())
}
