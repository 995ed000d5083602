package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acdverify/internal/section"
	"acdverify/pkg/contract"
)

func metadata() contract.Tree {
	return contract.Tree{
		"_version":    "0x1",
		"_total_time": "1.5s",
		"cpu0": contract.Tree{
			"cpuid":     "0x806F8",
			"core_mask": "0xff",
			"cha_count": "0x20",
		},
	}
}

func flatDoc() contract.Tree {
	return contract.Tree{
		"METADATA": metadata(),
		"PROCESSORS": contract.Tree{
			"_version": "0x1",
			"cpu0": contract.Tree{
				"TOR":     contract.Tree{"_version": "0x906f", "_time": "0.1s", "r0": "0x1"},
				"uncore":  contract.Tree{"_version": "0x806f", "_time": "0.1s", "B31_D30_F3_0x94": "0xc0"},
				"MCA":     contract.Tree{"_version": "0x3e06f", "_time": "0.1s", "core0": contract.Tree{"bank0_status": "0x0"}},
				"PM_info": contract.Tree{"_version": "0xc06f", "_time": "0.1s", "core0": contract.Tree{"pm": "0x1"}},
				"big_core": contract.Tree{
					"_version": "0x406f",
					"_time":    "0.1s",
					"core0":    contract.Tree{"size": "0x05A80000", "CORE_CR_APIC_BASE": "0xFEE00900"},
				},
			},
		},
	}
}

func splitDoc() contract.Tree {
	return contract.Tree{
		"crash_data": contract.Tree{
			"METADATA": metadata(),
			"PROCESSORS": contract.Tree{
				"cpu0": contract.Tree{
					"io0": contract.Tree{
						"uncore": contract.Tree{"_version": "0x806f", "_time": "0.1s", "B31_D30_F3_0x94": "N/A"},
						"MCA":    contract.Tree{"_version": "0x3e06f", "_time": "0.1s", "uncore0": contract.Tree{"cbo5_status": "0x0"}},
					},
					"compute0": contract.Tree{
						"TOR": contract.Tree{"_version": "0x906f", "_time": "0.1s"},
						"MCA": contract.Tree{"_version": "0x3e06f", "_time": "0.1s", "core0": contract.Tree{"bank0_status": "0x0"}},
					},
					"compute1": contract.Tree{
						"TOR":      contract.Tree{"_version": "0x906f", "_time": "0.1s"},
						"MCA":      contract.Tree{"_version": "0x3e06f", "_time": "0.1s"},
						"big_core": contract.Tree{"_version": "0x406f", "_time": "0.1s"},
					},
				},
			},
		},
	}
}

func TestResolveFlat(t *testing.T) {
	d, err := Resolve(flatDoc(), Options{})
	require.NoError(t, err)

	assert.Equal(t, Flat, d.Topology)
	require.Len(t, d.CPUs, 1)
	assert.Equal(t, "cpu0", d.CPUs[0].Name)
	assert.Empty(t, d.Diagnostics, "address_map 缺失不应产生诊断")

	var paths []string
	for _, sc := range d.Sections() {
		paths = append(paths, sc.Path())
	}
	assert.Equal(t, []string{"cpu0.tor", "cpu0.uncore", "cpu0.mca", "cpu0.pm_info", "cpu0.big_core"}, paths)
	assert.Nil(t, d.Computes())

	unc, ok := d.Lookup("cpu0", section.Uncore)
	require.True(t, ok)
	assert.Equal(t, "XCC", unc.Uncore.Chop)
	assert.True(t, unc.Uncore.Unreachable, "cpuid 应从 METADATA 传入 uncore")
}

func TestResolveSplit(t *testing.T) {
	d, err := Resolve(splitDoc(), Options{})
	require.NoError(t, err)

	assert.Equal(t, Split, d.Topology)
	require.Len(t, d.CPUs[0].Groups, 3)
	assert.Equal(t, "cpu0.io0", d.CPUs[0].Groups[0].Scope)
	assert.Equal(t, map[string][]string{"cpu0": {"compute0", "compute1"}}, d.Computes())
	assert.Equal(t, []string{"big_core section was not found in cpu0.compute0"}, d.Diagnostics)

	mca, ok := d.Lookup("cpu0.io0", section.Mca)
	require.True(t, ok)
	assert.Equal(t, 1, mca.Mca.Uncore.Registers)

	unc, ok := d.Lookup("cpu0.io0", section.Uncore)
	require.True(t, ok)
	assert.Equal(t, "N/A", unc.Uncore.Chop)
}

func TestResolveMissingRequiredKeys(t *testing.T) {
	_, err := Resolve(contract.Tree{"PROCESSORS": contract.Tree{}}, Options{})
	assert.ErrorIs(t, err, contract.ErrStructureInvalid)

	_, err = Resolve(contract.Tree{"METADATA": metadata()}, Options{})
	assert.ErrorIs(t, err, contract.ErrStructureInvalid)
}

func TestClassifyAnchoredPrefix(t *testing.T) {
	tests := map[string]struct {
		cpus map[string]contract.Tree
		want Topology
	}{
		"扁平":         {cpus: map[string]contract.Tree{"cpu0": {"TOR": contract.Tree{}}}, want: Flat},
		"任一 CPU 拆分即拆分": {cpus: map[string]contract.Tree{"cpu0": {"TOR": contract.Tree{}}, "cpu1": {"compute0": contract.Tree{}}}, want: Split},
		"子串不算":       {cpus: map[string]contract.Tree{"cpu0": {"bio0": contract.Tree{}, "xcompute": contract.Tree{}}}, want: Flat},
		"标量不算":       {cpus: map[string]contract.Tree{"cpu0": {"io_count": "0x2"}}, want: Flat},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.cpus))
		})
	}
}

// 不含哨兵的 dump：各段错误计数为 0。
func TestCleanDumpHasNoErrors(t *testing.T) {
	d, err := Resolve(flatDoc(), Options{})
	require.NoError(t, err)
	for _, sc := range d.Sections() {
		assert.Empty(t, sc.Section.Tally.Errors, sc.Path())
	}
	assert.Empty(t, d.Metadata.Tally.Errors)
}
