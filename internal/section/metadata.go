package section

import (
	"fmt"
	"strings"

	"acdverify/internal/regtree"
	"acdverify/pkg/contract"
)

// NotPresent 为缺失字段在摘要/比对中的占位值。
const NotPresent = "Not present"

// 已知处理器家族 CPUID（忽略末位 stepping）。
var knownCPUIDs = map[string]string{
	"0X5065":  "SKX/CLX/CPX",
	"0X606A":  "ICX",
	"0X806F":  "SPR",
	"0XA06D1": "GNR",
}

// MetaDetail 为 METADATA 段明细。
type MetaDetail struct {
	CPUs []string
}

// MetadataSummary 为元数据摘要。
type MetadataSummary struct {
	CPUs            int               `json:"n_cpus" yaml:"n_cpus"`
	CPUIDs          map[string]string `json:"cpu_ids" yaml:"cpu_ids"`
	DieMasks        map[string]string `json:"cpu_die_masks" yaml:"cpu_die_masks"`
	TotalTime       string            `json:"total_time" yaml:"total_time"`
	TriggerType     string            `json:"trigger_type" yaml:"trigger_type"`
	CrashCoreCounts map[string]string `json:"crashcore_counts" yaml:"crashcore_counts"`
}

func (s *Section) verifyMetadata() {
	d := &MetaDetail{}
	for _, key := range s.Raw.Keys() {
		switch {
		case strings.HasPrefix(key, "cpu"):
			d.CPUs = append(d.CPUs, key)
			s.checkCPU(key)
		case strings.HasPrefix(key, regtree.ReservedPrefix):
		default:
			if _, isText := s.Raw[key].(string); !isText {
				s.warnf("Section %s, not expected in %s", key, s.Name())
			}
		}
	}
	s.Meta = d
	s.Roots = len(d.CPUs)
	s.Tally = regtree.Count(s.Raw, "", s.classifier)
	if len(d.CPUs) == 0 {
		s.warnf("No cpus found in %s", s.Name())
	}
}

func (s *Section) checkCPU(cpu string) {
	if v, ok := s.CPULookup(cpu, "cpuid"); ok {
		id := strings.ToUpper(v)
		if _, known := knownCPUIDs[trimLastNibble(id)]; !known {
			s.SelfCheck = append(s.SelfCheck, fmt.Sprintf("%s has CPUID invalid value %s", cpu, id))
		}
	} else {
		s.SelfCheck = append(s.SelfCheck, fmt.Sprintf("%s cpuid key not present in %s", cpu, s.Name()))
	}
	for _, key := range []string{"core_mask", "cha_count"} {
		l, ok := s.CPULeaf(cpu, key)
		switch {
		case !ok:
			s.SelfCheck = append(s.SelfCheck, fmt.Sprintf("%s %s key not present in %s", cpu, key, s.Name()))
		case IsZero(l):
			s.SelfCheck = append(s.SelfCheck, fmt.Sprintf("%s has %s invalid value %s", cpu, key, l.Value))
		}
	}
}

// CPULeaf 在 cpu 子树内查找首个名为 key 的非哨兵叶子。
func (s *Section) CPULeaf(cpu, key string) (regtree.Leaf, bool) {
	sub, ok := s.Raw[cpu]
	if !ok {
		return regtree.Leaf{}, false
	}
	return regtree.Find(sub, key, s.classifier)
}

// CPULookup 为 CPULeaf 的文本形式。
func (s *Section) CPULookup(cpu, key string) (string, bool) {
	l, ok := s.CPULeaf(cpu, key)
	return l.Value, ok
}

// CPUID 返回 cpu 的原始 cpuid 字段（不存在时为空串）。
func (s *Section) CPUID(cpu string) string {
	sub, ok := s.Raw.Child(cpu)
	if !ok {
		return ""
	}
	v, _ := contract.LeafText(sub["cpuid"])
	return v
}

// MetadataSummary 汇总元数据；computes 为 die 拆分拓扑下 cpu → compute die 列表，扁平拓扑传 nil。
func (s *Section) MetadataSummary(computes map[string][]string) MetadataSummary {
	sum := MetadataSummary{
		CPUIDs:          map[string]string{},
		DieMasks:        map[string]string{},
		CrashCoreCounts: map[string]string{},
		TotalTime:       s.textOr(s.Raw, "_total_time"),
		TriggerType:     s.textOr(s.Raw, "trigger_type"),
	}
	if s.Meta == nil {
		return sum
	}
	sum.CPUs = len(s.Meta.CPUs)
	for _, cpu := range s.Meta.CPUs {
		sub, _ := s.Raw.Child(cpu)
		sum.CPUIDs[cpu] = s.textOr(sub, "cpuid")
		sum.DieMasks[cpu] = s.textOr(sub, "die_mask")
		if dies, split := computes[cpu]; split {
			for _, die := range dies {
				dsub, _ := sub.Child(die)
				sum.CrashCoreCounts[cpu+"."+die] = s.textOr(dsub, "final_crashcore_count")
			}
			continue
		}
		if v, ok := s.CPULookup(cpu, "crashcore_count"); ok {
			sum.CrashCoreCounts[cpu] = v
		} else {
			sum.CrashCoreCounts[cpu] = NotPresent
		}
	}
	return sum
}

func (s *Section) textOr(t contract.Tree, key string) string {
	if t == nil {
		return NotPresent
	}
	if v, ok := contract.LeafText(t[key]); ok {
		return v
	}
	return NotPresent
}

// metadataTime: _total_time 加 _time，或 Common/Cpu_Early/Cpu_Late 三段（含各 cpu 子项）及 TOTAL。
func (s *Section) metadataTime() TimeInfo {
	ti := TimeInfo{"_total_time": 0}
	if v, ok := s.Raw["_total_time"]; ok {
		if f, ok := s.seconds("_total_time", v); ok {
			ti["_total_time"] = f
		}
	}
	if v, ok := s.Raw["_time"]; ok {
		if f, ok := s.seconds("_time", v); ok {
			ti["_time"] = f
		}
		return ti
	}
	parts := []string{"_time_Metadata_Common", "_time_Metadata_Cpu_Early", "_time_Metadata_Cpu_Late"}
	var total float64
	for _, key := range parts {
		var sum float64
		if v, ok := s.Raw[key]; ok {
			if f, ok := s.seconds(key, v); ok {
				sum += f
			}
		}
		if key != "_time_Metadata_Common" && s.Meta != nil {
			for _, cpu := range s.Meta.CPUs {
				sub, _ := s.Raw.Child(cpu)
				if v, ok := sub[key]; ok {
					if f, ok := s.seconds(cpu+"."+key, v); ok {
						sum += f
					}
				}
			}
		}
		ti[key] = round2(sum)
		total += sum
	}
	ti["TOTAL"] = round2(total)
	return ti
}

func trimLastNibble(s string) string {
	if len(s) == 0 {
		return s
	}
	return s[:len(s)-1]
}
