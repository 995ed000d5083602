package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"acdverify/internal/checks"
	"acdverify/internal/diag"
	"acdverify/internal/ignorelist"
	"acdverify/internal/pipeline"
	"acdverify/internal/report"
	"acdverify/pkg/registry"
)

var logLevels = map[string]bool{"": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return errors.New("config: inputs empty")
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		switch strings.TrimSpace(r) {
		case "":
			return errors.New("config: input path cannot be empty")
		case "-":
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return errors.New("config: '-' cannot be mixed with other roots")
	}
	if cfg.Concurrency < 1 {
		return errors.New("config: concurrency must be >= 1")
	}
	if strings.TrimSpace(cfg.Compare) == "-" {
		return errors.New("config: compare dump cannot be read from stdin")
	}
	if !logLevels[strings.ToLower(strings.TrimSpace(cfg.Logging.Level))] {
		return fmt.Errorf("config: unknown logging level %q", cfg.Logging.Level)
	}
	for _, r := range cfg.Regions {
		if !report.KnownRegion(report.Region(r)) {
			return fmt.Errorf("config: unknown report region %q", r)
		}
	}
	for name := range cfg.Checks {
		if registry.CheckRule[name] == nil {
			return fmt.Errorf("config: check %q not registered", name)
		}
	}
	d := Defaults().Components
	if name := effName(cfg.Components.Reader, d.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered", name)
	}
	if name := effName(cfg.Components.Decoder, d.Decoder); registry.Decoder[name] == nil {
		return fmt.Errorf("config: decoder %q not registered", name)
	}
	if name := effName(cfg.Components.Encoder, d.Encoder); registry.Encoder[name] == nil {
		return fmt.Errorf("config: encoder %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, d.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered", name)
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	comp, err := components(cfg)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	rules, err := Rules(cfg.Checks)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	ignore, err := IgnoreList(cfg.Ignore)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	set := pipeline.Settings{
		Inputs:      cloneStrings(cfg.Inputs),
		Concurrency: cfg.Concurrency,
		Compare:     strings.TrimSpace(cfg.Compare),
		Ignore:      ignore,
		Rules:       rules,
		Scope:       strings.TrimSpace(cfg.Scope),
		Verbose:     cfg.Verbose,
	}
	for _, r := range cfg.Regions {
		set.Regions = append(set.Regions, report.Region(r))
	}
	return comp, set, nil
}

func components(cfg Config) (pipeline.Components, error) {
	d := Defaults().Components
	r, err := registry.Reader[effName(cfg.Components.Reader, d.Reader)](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, fmt.Errorf("reader options: %w", err)
	}
	dec, err := registry.Decoder[effName(cfg.Components.Decoder, d.Decoder)](cfg.Options.Decoder)
	if err != nil {
		return pipeline.Components{}, fmt.Errorf("decoder options: %w", err)
	}
	enc, err := registry.Encoder[effName(cfg.Components.Encoder, d.Encoder)](cfg.Options.Encoder)
	if err != nil {
		return pipeline.Components{}, fmt.Errorf("encoder options: %w", err)
	}
	w, err := registry.Writer[effName(cfg.Components.Writer, d.Writer)](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, fmt.Errorf("writer options: %w", err)
	}
	return pipeline.Components{Reader: r, Decoder: dec, Encoder: enc, Writer: w}, nil
}

// Rules 按规则名排序构造检查规则，保证报告中 checks 顺序稳定。
func Rules(specs map[string]json.RawMessage) ([]checks.Rule, error) {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []checks.Rule
	for _, name := range names {
		newRule := registry.CheckRule[name]
		if newRule == nil {
			return nil, fmt.Errorf("config: check %q not registered", name)
		}
		r, err := newRule(specs[name])
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// IgnoreList 合并内置清单与文件清单；均未启用时返回 nil。
func IgnoreList(ig Ignore) (ignorelist.List, error) {
	var out ignorelist.List
	if ig.Default {
		out = ignorelist.Default()
	}
	if f := strings.TrimSpace(ig.File); f != "" {
		l, err := ignorelist.Load(f)
		if err != nil {
			return nil, err
		}
		out = out.Merge(l)
	}
	return out, nil
}

// Summary 返回脱敏后的有效配置摘要（用于 debug 日志）。
func Summary(cfg Config) map[string]string {
	checksNames := make([]string, 0, len(cfg.Checks))
	for name := range cfg.Checks {
		checksNames = append(checksNames, name)
	}
	sort.Strings(checksNames)
	return map[string]string{
		"inputs_count": fmt.Sprintf("%d", len(cfg.Inputs)),
		"concurrency":  fmt.Sprintf("%d", cfg.Concurrency),
		"compare":      cfg.Compare,
		"checks":       strings.Join(checksNames, ","),
		"scope":        cfg.Scope,
		"reader":       cfg.Components.Reader,
		"decoder":      cfg.Components.Decoder,
		"encoder":      cfg.Components.Encoder,
		"writer":       cfg.Components.Writer,
		"log_level":    strings.ToLower(diag.ParseLevel(cfg.Logging.Level).String()),
	}
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
