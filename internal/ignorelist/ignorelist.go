package ignorelist

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"acdverify/internal/section"
	"acdverify/pkg/contract"
)

//go:embed default.yaml
var defaultYAML []byte

// List: 段键名（如 "uncore"）→ 比对时忽略的点分路径。
type List map[string][]string

// Default 返回内置忽略清单。
func Default() List {
	l, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("ignorelist: embedded default: %v", err))
	}
	return l
}

// Load 读取 YAML 或 JSON 格式的忽略清单文件（JSON 为 YAML 子集）。
func Load(path string) (List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ignore list %q: %w", path, err)
	}
	l, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("ignore list %q: %w", path, err)
	}
	return l, nil
}

// Parse 解码并校验清单：键必须是已知段名。
func Parse(data []byte) (List, error) {
	var l List
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", contract.ErrInvalidInput, err)
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l List) validate() error {
	for key := range l {
		if _, ok := section.KindOf(key); !ok {
			return fmt.Errorf("%w: unknown section %q", contract.ErrInvalidInput, key)
		}
	}
	return nil
}

// Merge 返回 l 与 o 的并集（路径去重、排序）。
func (l List) Merge(o List) List {
	out := List{}
	for _, src := range []List{l, o} {
		for key, paths := range src {
			out[key] = append(out[key], paths...)
		}
	}
	for key, paths := range out {
		sort.Strings(paths)
		uniq := paths[:0]
		for i, p := range paths {
			if i == 0 || p != paths[i-1] {
				uniq = append(uniq, p)
			}
		}
		out[key] = uniq
	}
	return out
}
