package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"acdverify/internal/checks"
	"acdverify/pkg/contract"
)

// 解析完整 config.json
func TestLoadJSON(t *testing.T) {
	cfg, err := LoadJSON("../../testdata/config/basic.json", nil)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Compare != "golden/cpu_dump.json" || cfg.Scope != "cpu0" || !cfg.Ignore.Default {
		t.Fatalf("字段映射错误: %+v", cfg)
	}
	if len(cfg.Inputs) != 1 || cfg.Components.Encoder != "yaml" || len(cfg.Checks) != 2 {
		t.Fatalf("字段映射错误: %+v", cfg)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("校验失败: %v", err)
	}
}

// 含非法字段
func TestLoadJSONUnknown(t *testing.T) {
	if _, err := LoadJSON("", []byte(`{"unknown":1}`)); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("应当返回 ErrInvalidInput: %v", err)
	}
	if _, err := LoadJSON("", nil); err == nil {
		t.Fatalf("无来源应报错")
	}
	if _, err := LoadJSON(filepath.Join(t.TempDir(), "none.json"), nil); !os.IsNotExist(err) {
		t.Fatalf("缺失文件应返回 not exist: %v", err)
	}
}

// ENV 覆盖部分字段
func TestEnvOverlay(t *testing.T) {
	env := []string{
		"ACD_VERIFY_INPUTS=a.json, b",
		"ACD_VERIFY_CONCURRENCY=3",
		"ACD_VERIFY_COMPARE=golden.json",
		"ACD_VERIFY_IGNORE_LIST=true",
		"ACD_VERIFY_CHECKS_JSON={\"check3strike\":{}}",
		"ACD_VERIFY_VERBOSE=1",
		"ACD_VERIFY_COMPONENTS_ENCODER=yaml",
		"ACD_VERIFY_OPTIONS_WRITER_JSON={\"output_dir\":\"out\"}",
		"ACD_VERIFY_SCOPE=",
		"OTHER=1",
	}
	over, err := EnvOverlay(env)
	if err != nil {
		t.Fatalf("EnvOverlay 错误: %v", err)
	}
	if over.Concurrency != 3 || len(over.Inputs) != 2 || over.Inputs[1] != "b" || over.Compare != "golden.json" {
		t.Fatalf("覆盖结果不正确: %+v", over)
	}
	if !over.Ignore.Default || !over.Verbose || over.Components.Encoder != "yaml" || over.Scope != "" {
		t.Fatalf("覆盖结果不正确: %+v", over)
	}
	if _, ok := over.Checks["check3strike"]; !ok {
		t.Fatalf("checks 未解析: %v", over.Checks)
	}
	if string(over.Options.Writer) != `{"output_dir":"out"}` {
		t.Fatalf("writer options = %s", over.Options.Writer)
	}

	for _, bad := range []string{"ACD_VERIFY_CONCURRENCY=x", "ACD_VERIFY_VERBOSE=maybe", "ACD_VERIFY_CHECKS_JSON=[", "ACD_VERIFY_OPTIONS_READER_JSON={"} {
		if _, err := EnvOverlay([]string{bad}); !errors.Is(err, contract.ErrInvalidInput) {
			t.Fatalf("%s: 应返回 ErrInvalidInput, got %v", bad, err)
		}
	}
}

// 合并优先级
func TestMerge(t *testing.T) {
	base := Defaults()
	base.Checks = map[string]json.RawMessage{"check3strike": json.RawMessage(`{}`)}
	base.Scope = "cpu0"
	over := Config{
		Concurrency: 8,
		Checks:      map[string]json.RawMessage{"checkMCAValueMask": json.RawMessage(`{"pairs":[[1,1]]}`)},
		Components:  Components{Encoder: "yaml"},
	}
	got := Merge(base, over)
	if got.Concurrency != 8 || got.Components.Encoder != "yaml" || got.Components.Reader != "fs" {
		t.Fatalf("merge 结果错误: %+v", got)
	}
	if len(got.Checks) != 2 || got.Scope != "cpu0" {
		t.Fatalf("checks/scope 合并错误: %+v", got)
	}
	if len(base.Checks) != 1 {
		t.Fatalf("不应修改 base")
	}
}

// 校验错误分支
func TestValidateErrors(t *testing.T) {
	if err := Validate(Config{}); err == nil {
		t.Fatal("空配置应失败")
	}
	cases := map[string]func(*Config){
		"混用 '-'":    func(c *Config) { c.Inputs = []string{"-", "a"} },
		"空输入":       func(c *Config) { c.Inputs = []string{" "} },
		"并发为 0":     func(c *Config) { c.Concurrency = 0 },
		"stdin 比对":  func(c *Config) { c.Compare = "-" },
		"未知日志级别":    func(c *Config) { c.Logging.Level = "loud" },
		"未知区域":      func(c *Config) { c.Regions = []string{"nope"} },
		"未知规则":      func(c *Config) { c.Checks = map[string]json.RawMessage{"nope": nil} },
		"未知编码器":     func(c *Config) { c.Components.Encoder = "xml" },
		"未知 reader": func(c *Config) { c.Components.Reader = "s3" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultTemplateConfig()
			mutate(&cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("应失败")
			}
		})
	}
}

// 装配：规则按名排序，忽略清单合并
func TestAssemble(t *testing.T) {
	dir := t.TempDir()
	ignoreFile := filepath.Join(dir, "ignore.yaml")
	if err := os.WriteFile(ignoreFile, []byte("uncore: [B00_D00_F0_0x0]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultTemplateConfig()
	cfg.Inputs = []string{dir}
	cfg.Options.Writer = json.RawMessage(`{"output_dir":"` + filepath.ToSlash(filepath.Join(dir, "out")) + `"}`)
	cfg.Checks["checkMCAValueMask"] = json.RawMessage(`{"pairs":[["0xff","0x10"]]}`)
	cfg.Ignore.File = ignoreFile

	comp, set, err := Assemble(cfg)
	if err != nil {
		t.Fatalf("装配失败: %v", err)
	}
	if comp.Reader == nil || comp.Decoder == nil || comp.Encoder == nil || comp.Writer == nil {
		t.Fatalf("组件缺失: %+v", comp)
	}
	if len(set.Rules) != 2 || set.Rules[0].Name() != checks.ThreeStrikeName || set.Rules[1].Name() != checks.MaskMatchName {
		t.Fatalf("规则顺序错误: %v", set.Rules)
	}
	if len(set.Ignore["uncore"]) != 2 || len(set.Regions) != 5 {
		t.Fatalf("忽略清单/区域错误: %+v", set)
	}

	cfg.Checks["checkMCAValueMask"] = json.RawMessage(`{"pairs":[]}`)
	if _, _, err := Assemble(cfg); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("空 pairs 应失败: %v", err)
	}
	cfg.Checks = nil
	cfg.Ignore.File = filepath.Join(dir, "missing.yaml")
	if _, _, err := Assemble(cfg); err == nil {
		t.Fatalf("忽略清单缺失应失败")
	}
}

// 输出目录覆盖保留其余键
func TestWithOutputDir(t *testing.T) {
	raw, err := WithOutputDir(json.RawMessage(`{"atomic":false}`), "out")
	if err != nil {
		t.Fatalf("WithOutputDir: %v", err)
	}
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	if m["output_dir"] != "out" || m["atomic"] != false {
		t.Fatalf("结果错误: %s", raw)
	}
	if _, err := WithOutputDir(json.RawMessage(`[`), "out"); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("非法 JSON 应失败: %v", err)
	}
	if got, _ := WithOutputDir(nil, "x"); string(got) != `{"output_dir":"x"}` {
		t.Fatalf("空 options: %s", got)
	}
}

// 补充覆盖: splitComma、cloneRaw 与 Summary
func TestHelpers(t *testing.T) {
	parts := splitComma("a, b , ,c")
	if len(parts) != 3 || parts[1] != "b" {
		t.Fatalf("splitComma 结果错误: %v", parts)
	}
	src := []byte("abc")
	dst := cloneRaw(src)
	src[0] = 'x'
	if string(dst) != "abc" {
		t.Fatalf("cloneRaw 未复制")
	}
	s := Summary(DefaultTemplateConfig())
	if s["checks"] != "check3strike" || s["log_level"] != "info" {
		t.Fatalf("summary: %v", s)
	}
}
