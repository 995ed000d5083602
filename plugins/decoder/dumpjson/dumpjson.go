package dumpjson

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/valyala/fastjson"

	"acdverify/pkg/contract"
)

// Options: dump 解码选项。
type Options struct {
	// MaxBytes: 单文件读取上限（字节），超出视为文档非法。默认 256MiB。
	MaxBytes int64 `json:"max_bytes"`
	// Envelope: 可选外层包装键，存在且为对象时取其内容。默认 "crash_data"。
	Envelope string `json:"envelope"`
}

const defaultMaxBytes = 256 << 20

// 必需的顶层键
var requiredKeys = []string{"METADATA", "PROCESSORS"}

type decoder struct {
	maxBytes int64
	envelope string
	pool     fastjson.ParserPool
}

// New 从原样 JSON Options 创建解码器；未知字段报错。
func New(raw json.RawMessage) (contract.Decoder, error) {
	opts := Options{MaxBytes: defaultMaxBytes, Envelope: "crash_data"}
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return nil, fmt.Errorf("%w: dumpjson options: %v", contract.ErrInvalidInput, err)
		}
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	return &decoder{maxBytes: opts.MaxBytes, envelope: opts.Envelope}, nil
}

// Decode 读取整份文档并转换为 contract.Tree。
// 非法 JSON 返回 ErrDocumentInvalid；缺少 METADATA/PROCESSORS 返回 ErrStructureInvalid。
func (d *decoder) Decode(ctx context.Context, id contract.FileID, r io.Reader) (contract.Tree, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	data, err := io.ReadAll(io.LimitReader(r, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes: %w", id, d.maxBytes, contract.ErrDocumentInvalid)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s is not valid JSON: %w", id, contract.ErrDocumentInvalid)
	}
	if d.envelope != "" {
		if env := gjson.GetBytes(data, gjson.Escape(d.envelope)); env.IsObject() {
			data = []byte(env.Raw)
		}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%s: top level is not an object: %w", id, contract.ErrStructureInvalid)
	}
	for _, key := range requiredKeys {
		if !root.Get(gjson.Escape(key)).IsObject() {
			return nil, fmt.Errorf("%s: %s key not found: %w", id, key, contract.ErrStructureInvalid)
		}
	}

	p := d.pool.Get()
	defer d.pool.Put(p)
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", id, err, contract.ErrDocumentInvalid)
	}
	t, _ := contract.AsTree(convert(v))
	return t, nil
}

// convert 将 fastjson 值深拷贝为 Tree 值域；解析器归还池后不再引用其内存。
func convert(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeObject:
		obj, _ := v.Object()
		t := make(contract.Tree, obj.Len())
		obj.Visit(func(key []byte, child *fastjson.Value) {
			t[string(key)] = convert(child)
		})
		return t
	case fastjson.TypeArray:
		arr, _ := v.Array()
		out := make([]any, len(arr))
		for i, item := range arr {
			out[i] = convert(item)
		}
		return out
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return contract.Number(v.String())
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return nil
	}
}

var _ contract.Decoder = (*decoder)(nil)
