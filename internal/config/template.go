package config

import "github.com/goccy/go-json"

// DefaultTemplateConfig 返回一个可运行的默认配置模板：
// 输入为当前目录，报告写入 ./reports，启用内置忽略清单与三振检查；
// Options 列出全部键（值为中性默认）。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Inputs:      []string{"."},
		Concurrency: 4,
		Ignore:      Ignore{Default: true},
		Checks: map[string]json.RawMessage{
			"check3strike": json.RawMessage(`{}`),
		},
		Regions:    []string{"summary", "table", "selfCheck", "checks", "compare"},
		Logging:    Logging{Level: "info"},
		Components: d.Components,
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "exclude_dir_names": [".git", "reports"],
  "include": ["**/*.json"],
  "exclude": ["**/*_report.*"]
}`)
	cfg.Options.Decoder = json.RawMessage(`{
  "max_bytes": 268435456,
  "envelope": "crash_data"
}`)
	cfg.Options.Encoder = json.RawMessage(`{
  "indent": "  "
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "reports",
  "atomic": true,
  "flat": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}
