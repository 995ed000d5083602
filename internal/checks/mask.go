package checks

import (
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"acdverify/internal/regtree"
	"acdverify/internal/section"
	"acdverify/internal/topology"
	"acdverify/pkg/contract"
)

// MaskMatchName 为掩码匹配检查的规则名。
const MaskMatchName = "checkMCAValueMask"

const statusSuffix = "_status"

// Hex 接受十六进制字符串（"0xff"）或整数字面量。
type Hex uint64

func (h *Hex) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		s = string(b)
	}
	v, err := parseUint(s)
	if err != nil {
		return fmt.Errorf("%w: mask/match %s: %v", contract.ErrInvalidInput, string(b), err)
	}
	*h = Hex(v)
	return nil
}

// Pair 为一组 [mask, match]。
type Pair [2]Hex

func (p Pair) Mask() uint64  { return uint64(p[0]) }
func (p Pair) Match() uint64 { return uint64(p[1]) }

// MaskMatchOptions 为规则的 JSON 选项：{"pairs": [[mask, match], ...]}。
type MaskMatchOptions struct {
	Pairs []Pair `json:"pairs"`
}

// MaskMatch 在 MCA 段中查找 *_status 寄存器：(value & mask) == (mask & match) 记为命中。
type MaskMatch struct {
	Pairs []Pair
}

func (MaskMatch) Name() string { return MaskMatchName }

func (m MaskMatch) Check(d *topology.CrashDump) Result {
	res := NewResult(MaskMatchName)
	for _, sc := range d.Sections() {
		if sc.Section.Kind == section.Mca {
			res.Merge(sc.Path(), m.Section(sc.Section))
		}
	}
	return res
}

// Section 在单个段上执行匹配，路径相对于段。
func (m MaskMatch) Section(s *section.Section) Result {
	res := NewResult(MaskMatchName)
	regtree.Walk(s.Raw, "", s.Classifier(), func(l regtree.Leaf) {
		if l.Err || !strings.HasSuffix(l.Key, statusSuffix) {
			return
		}
		v, err := section.LeafUint(l)
		if err != nil {
			res.Note(fmt.Sprintf("register %s has an unexpected value %s", l.Path, l.Value))
			return
		}
		for _, p := range m.Pairs {
			if v&p.Mask() == p.Mask()&p.Match() {
				res.Record(l.Path, Occurrence{Value: l.Value, Mask: p.Mask(), Match: p.Match(), Satisfied: true})
			}
		}
	})
	return res
}

// ParsePairs 解析命令行形式的 "[[mask0, match0], [mask1, match1]]"，
// 元素可为 0x 前缀十六进制、十进制或带引号的字符串。
func ParsePairs(s string) ([]Pair, error) {
	body := strings.TrimSpace(s)
	if !strings.HasPrefix(body, "[") || !strings.HasSuffix(body, "]") {
		return nil, fmt.Errorf("%w: mask/match pairs must be a list: %q", contract.ErrInvalidInput, s)
	}
	body = strings.TrimSpace(body[1 : len(body)-1])
	var out []Pair
	for body != "" {
		if body[0] != '[' {
			return nil, fmt.Errorf("%w: mask/match pair must be a list: %q", contract.ErrInvalidInput, s)
		}
		end := strings.IndexByte(body, ']')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated mask/match pair: %q", contract.ErrInvalidInput, s)
		}
		parts := strings.Split(body[1:end], ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: mask/match pair needs 2 values: %q", contract.ErrInvalidInput, body[:end+1])
		}
		var p Pair
		for i, part := range parts {
			v, err := parseUint(part)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", contract.ErrInvalidInput, part, err)
			}
			p[i] = Hex(v)
		}
		out = append(out, p)
		body = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(body[end+1:]), ","))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no mask/match pairs", contract.ErrInvalidInput)
	}
	return out, nil
}

func parseUint(s string) (uint64, error) {
	t := strings.Trim(strings.TrimSpace(s), `"'`)
	return strconv.ParseUint(t, 0, 64)
}
