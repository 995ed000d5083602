package config

import (
	"github.com/goccy/go-json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	Inputs      []string `json:"inputs"`
	Concurrency int      `json:"concurrency"`

	// Compare: 参考 dump 路径（为空不比对）。
	Compare string `json:"compare"`
	Ignore  Ignore `json:"ignore"`

	// Checks: 规则名 → 原样 JSON 参数（如 checkMCAValueMask 的 pairs）。
	Checks map[string]json.RawMessage `json:"checks"`
	// Scope: 点分作用域（cpu.core.thread），仅过滤检查结果。
	Scope string `json:"scope"`

	// Regions: 报告区域；为空使用默认顺序。
	Regions []string `json:"regions"`
	Verbose bool     `json:"verbose"`

	// MetricsFile: 运行结束后写出的 Prometheus textfile 路径。
	MetricsFile string  `json:"metrics_file"`
	Logging     Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`
	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Ignore: 比对忽略清单。
type Ignore struct {
	// Default: 启用内置忽略清单（时间类键）。
	Default bool `json:"default"`
	// File: 额外的 YAML/JSON 忽略清单文件。
	File string `json:"file"`
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader  string `json:"reader"`
	Decoder string `json:"decoder"`
	Encoder string `json:"encoder"`
	Writer  string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader  json.RawMessage `json:"reader"`
	Decoder json.RawMessage `json:"decoder"`
	Encoder json.RawMessage `json:"encoder"`
	Writer  json.RawMessage `json:"writer"`
}
