package registry

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"acdverify/internal/checks"
	"acdverify/pkg/contract"
	ddump "acdverify/plugins/decoder/dumpjson"
	ejson "acdverify/plugins/encoder/jsonreport"
	eyaml "acdverify/plugins/encoder/yamlreport"
	rfs "acdverify/plugins/reader/filesystem"
	wfs "acdverify/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)
	}
	return nil
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewDecoder 工厂签名：接收原样 JSON Options。
type NewDecoder func(raw json.RawMessage) (contract.Decoder, error)

// NewEncoder 工厂签名：接收原样 JSON Options。
type NewEncoder func(raw json.RawMessage) (contract.Encoder, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// NewRule 检查规则工厂签名：接收原样 JSON 参数。
type NewRule func(raw json.RawMessage) (checks.Rule, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts)
	},
}

// Decoder 工厂注册表。
var Decoder = map[string]NewDecoder{
	// dumpjson: crash dump JSON 解码器（选项在插件内严格解析）
	"dumpjson": func(raw json.RawMessage) (contract.Decoder, error) { return ddump.New(raw) },
}

// Encoder 工厂注册表；键同时作为命令行 --format 的取值。
var Encoder = map[string]NewEncoder{
	"json": func(raw json.RawMessage) (contract.Encoder, error) {
		var opts ejson.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ejson.New(&opts), nil
	},
	"yaml": func(raw json.RawMessage) (contract.Encoder, error) {
		var opts eyaml.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return eyaml.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

// CheckRule 检查规则注册表；键为报告中的规则名。
var CheckRule = map[string]NewRule{
	checks.ThreeStrikeName: func(raw json.RawMessage) (checks.Rule, error) {
		var opts struct{}
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return checks.ThreeStrike{}, nil
	},
	checks.MaskMatchName: func(raw json.RawMessage) (checks.Rule, error) {
		var opts checks.MaskMatchOptions
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		if len(opts.Pairs) == 0 {
			return nil, fmt.Errorf("%w: %s requires at least one [mask, match] pair", contract.ErrInvalidInput, checks.MaskMatchName)
		}
		return checks.MaskMatch{Pairs: opts.Pairs}, nil
	},
}
