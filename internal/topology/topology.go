package topology

import (
	"fmt"
	"strings"

	"acdverify/internal/regtree"
	"acdverify/internal/section"
	"acdverify/pkg/contract"
)

// 顶层必需键。
const (
	KeyEnvelope   = "crash_data"
	KeyProcessors = "PROCESSORS"
)

// Topology 为 dump 的处理器布局。
type Topology int

const (
	// Flat: CPU → {tor, uncore, mca, pm_info, address_map?, big_core}
	Flat Topology = iota
	// Split: CPU → {ioN → {uncore, mca}, computeN → {tor, mca, big_core}}
	Split
)

func (t Topology) String() string {
	if t == Split {
		return "split"
	}
	return "flat"
}

var (
	flatKinds    = []section.Kind{section.Tor, section.Uncore, section.Mca, section.PmInfo, section.AddressMap, section.BigCore}
	ioKinds      = []section.Kind{section.Uncore, section.Mca}
	computeKinds = []section.Kind{section.Tor, section.Mca, section.BigCore}
)

// Group 为一组同级段：扁平拓扑下为 CPU 本身，拆分拓扑下为一个 die。
type Group struct {
	// Scope 为点分作用域，如 "cpu0" 或 "cpu0.compute1"。
	Scope    string
	Die      string
	Sections []*section.Section
}

// CPU 为一个处理器插槽。
type CPU struct {
	Name   string
	Groups []Group
}

// CrashDump 为一次构造完成、之后只读的 dump。
type CrashDump struct {
	Topology Topology
	Metadata *section.Section
	CPUs     []CPU
	// Diagnostics: 可选段缺失等非致命诊断。
	Diagnostics []string
}

// Scoped 为带作用域的段引用。
type Scoped struct {
	Scope   string
	Section *section.Section
}

// Path 返回段在报告中的点分路径，如 "cpu0.compute0.mca"。
func (s Scoped) Path() string { return regtree.Join(s.Scope, s.Section.Kind.Label()) }

// Options 为解析参数。
type Options struct {
	Classifier regtree.Classifier
}

// Resolve 由解码后的文档构造 CrashDump。
// METADATA 或 PROCESSORS 缺失时返回包装 ErrStructureInvalid 的错误。
func Resolve(doc contract.Tree, opts Options) (*CrashDump, error) {
	if inner, ok := doc.Child(KeyEnvelope); ok {
		doc = inner
	}
	meta, ok := section.New(section.Metadata, doc, section.Options{Classifier: opts.Classifier})
	if !ok {
		return nil, fmt.Errorf("%w: %s key not present", contract.ErrStructureInvalid, section.Metadata.Key())
	}
	procs, ok := doc.Child(KeyProcessors)
	if !ok {
		return nil, fmt.Errorf("%w: %s key not present", contract.ErrStructureInvalid, KeyProcessors)
	}

	d := &CrashDump{Metadata: meta}
	cpus := map[string]contract.Tree{}
	var names []string
	for _, key := range procs.Keys() {
		if !strings.HasPrefix(key, "cpu") {
			continue
		}
		sub, ok := procs.Child(key)
		if !ok {
			d.warnf("%s in %s is not an object", key, KeyProcessors)
			continue
		}
		cpus[key] = sub
		names = append(names, key)
	}
	if len(names) == 0 {
		d.warnf("No cpus found in %s", KeyProcessors)
	}

	d.Topology = Classify(cpus)
	for _, name := range names {
		cpu := CPU{Name: name}
		sub := cpus[name]
		base := section.Options{Classifier: opts.Classifier, CPU: name, CPUID: meta.CPUID(name)}
		if d.Topology == Flat {
			cpu.Groups = []Group{d.build(name, "", sub, flatKinds, base)}
		} else {
			ios, computes := Dies(sub)
			if len(ios)+len(computes) == 0 {
				d.warnf("%s has no io/compute dies", name)
			}
			for _, die := range ios {
				dsub, _ := sub.Child(die)
				cpu.Groups = append(cpu.Groups, d.build(regtree.Join(name, die), die, dsub, ioKinds, base))
			}
			for _, die := range computes {
				dsub, _ := sub.Child(die)
				cpu.Groups = append(cpu.Groups, d.build(regtree.Join(name, die), die, dsub, computeKinds, base))
			}
		}
		d.CPUs = append(d.CPUs, cpu)
	}
	return d, nil
}

func (d *CrashDump) build(scope, die string, parent contract.Tree, kinds []section.Kind, opts section.Options) Group {
	g := Group{Scope: scope, Die: die}
	for _, k := range kinds {
		s, ok := section.New(k, parent, opts)
		if !ok {
			// address_map 仅部分平台输出，缺失不提示。
			if k != section.AddressMap {
				d.warnf("%s section was not found in %s", k.Key(), scope)
			}
			continue
		}
		g.Sections = append(g.Sections, s)
	}
	return g
}

func (d *CrashDump) warnf(format string, args ...any) {
	d.Diagnostics = append(d.Diagnostics, fmt.Sprintf(format, args...))
}

// Classify: 任一 CPU 含 io*/compute* 子对象即整份 dump 为 Split。
func Classify(cpus map[string]contract.Tree) Topology {
	for _, sub := range cpus {
		ios, computes := Dies(sub)
		if len(ios) > 0 || len(computes) > 0 {
			return Split
		}
	}
	return Flat
}

// Dies 返回 CPU 子树下按字典序排列的 io* 与 compute* 子对象名。
func Dies(cpu contract.Tree) (ios, computes []string) {
	for _, key := range cpu.Keys() {
		if _, ok := cpu.Child(key); !ok {
			continue
		}
		switch {
		case strings.HasPrefix(key, "io"):
			ios = append(ios, key)
		case strings.HasPrefix(key, "compute"):
			computes = append(computes, key)
		}
	}
	return ios, computes
}

// Sections 按 CPU、die、种类顺序返回全部寄存器段（不含 METADATA）。
func (d *CrashDump) Sections() []Scoped {
	var out []Scoped
	for _, cpu := range d.CPUs {
		for _, g := range cpu.Groups {
			for _, s := range g.Sections {
				out = append(out, Scoped{Scope: g.Scope, Section: s})
			}
		}
	}
	return out
}

// Lookup 按作用域与种类查找段。
func (d *CrashDump) Lookup(scope string, k section.Kind) (*section.Section, bool) {
	for _, sc := range d.Sections() {
		if sc.Scope == scope && sc.Section.Kind == k {
			return sc.Section, true
		}
	}
	return nil, false
}

// Computes 返回拆分拓扑下 cpu → compute die 列表；扁平拓扑返回 nil。
func (d *CrashDump) Computes() map[string][]string {
	if d.Topology != Split {
		return nil
	}
	out := map[string][]string{}
	for _, cpu := range d.CPUs {
		var dies []string
		for _, g := range cpu.Groups {
			if strings.HasPrefix(g.Die, "compute") {
				dies = append(dies, g.Die)
			}
		}
		out[cpu.Name] = dies
	}
	return out
}
