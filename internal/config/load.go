package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"acdverify/pkg/contract"
)

// EnvPrefix 为环境变量覆盖前缀。
const EnvPrefix = "ACD_VERIFY_"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		Concurrency: 1,
		Logging:     Logging{Level: "info"},
		Components: Components{
			Reader:  "fs",
			Decoder: "dumpjson",
			Encoder: "json",
			Writer:  "fs",
		},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: config: %v", contract.ErrInvalidInput, err)
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 标量/字符串/原样 JSON 为替换；布尔值仅 true 覆盖；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if s := strings.TrimSpace(over.Compare); s != "" {
		out.Compare = s
	}
	if over.Ignore.Default {
		out.Ignore.Default = true
	}
	if s := strings.TrimSpace(over.Ignore.File); s != "" {
		out.Ignore.File = s
	}
	// 规则按名替换对应键
	if len(over.Checks) > 0 {
		merged := make(map[string]json.RawMessage, len(out.Checks)+len(over.Checks))
		for k, v := range out.Checks {
			merged[k] = v
		}
		for k, v := range over.Checks {
			merged[k] = cloneRaw(v)
		}
		out.Checks = merged
	}
	if s := strings.TrimSpace(over.Scope); s != "" {
		out.Scope = s
	}
	if len(over.Regions) > 0 {
		out.Regions = cloneStrings(over.Regions)
	}
	if over.Verbose {
		out.Verbose = true
	}
	if s := strings.TrimSpace(over.MetricsFile); s != "" {
		out.MetricsFile = s
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}

	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Decoder != "" {
		out.Components.Decoder = over.Components.Decoder
	}
	if over.Components.Encoder != "" {
		out.Components.Encoder = over.Components.Encoder
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}

	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Decoder) > 0 {
		out.Options.Decoder = cloneRaw(over.Options.Decoder)
	}
	if len(over.Options.Encoder) > 0 {
		out.Options.Encoder = cloneRaw(over.Options.Encoder)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合，前缀 ACD_VERIFY_）。
// 支持：INPUTS, CONCURRENCY, COMPARE, IGNORE_LIST, IGNORE_LIST_FILE, CHECKS_JSON,
// SCOPE, REGIONS, VERBOSE, METRICS_FILE, LOG_LEVEL, COMPONENTS_*, OPTIONS_*_JSON。
// 数值/布尔/JSON 非法时返回 ErrInvalidInput。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := strings.TrimPrefix(kv[:eq], EnvPrefix)
		val := strings.TrimSpace(kv[eq+1:])
		if val == "" {
			// 空值视为未设置，避免清空 config.json
			continue
		}
		var err error
		switch key {
		case "INPUTS":
			over.Inputs = splitComma(val)
		case "CONCURRENCY":
			over.Concurrency, err = strconv.Atoi(val)
		case "COMPARE":
			over.Compare = val
		case "IGNORE_LIST":
			over.Ignore.Default, err = strconv.ParseBool(val)
		case "IGNORE_LIST_FILE":
			over.Ignore.File = val
		case "CHECKS_JSON":
			err = json.Unmarshal([]byte(val), &over.Checks)
		case "SCOPE":
			over.Scope = val
		case "REGIONS":
			over.Regions = splitComma(val)
		case "VERBOSE":
			over.Verbose, err = strconv.ParseBool(val)
		case "METRICS_FILE":
			over.MetricsFile = val
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "COMPONENTS_READER":
			over.Components.Reader = val
		case "COMPONENTS_DECODER":
			over.Components.Decoder = val
		case "COMPONENTS_ENCODER":
			over.Components.Encoder = val
		case "COMPONENTS_WRITER":
			over.Components.Writer = val
		case "OPTIONS_READER_JSON":
			over.Options.Reader, err = rawJSON(val)
		case "OPTIONS_DECODER_JSON":
			over.Options.Decoder, err = rawJSON(val)
		case "OPTIONS_ENCODER_JSON":
			over.Options.Encoder, err = rawJSON(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer, err = rawJSON(val)
		default:
			// CONFIG_FILE/CONFIG_JSON 由命令行入口读取；其余键忽略
		}
		if err != nil {
			return Config{}, fmt.Errorf("%w: env %s: %v", contract.ErrInvalidInput, kv[:eq], err)
		}
	}
	return over, nil
}

// WithOutputDir 在 fs writer 的原样 Options 中设置 output_dir，保留其余键。
func WithOutputDir(raw json.RawMessage, dir string) (json.RawMessage, error) {
	m := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("%w: writer options: %v", contract.ErrInvalidInput, err)
		}
	}
	m["output_dir"] = dir
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func rawJSON(s string) (json.RawMessage, error) {
	if !json.Valid([]byte(s)) {
		return nil, errors.New("invalid JSON")
	}
	return json.RawMessage(s), nil
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
