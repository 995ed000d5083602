package jsonreport

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"acdverify/pkg/contract"
)

// Options: JSON 报告编码选项。
type Options struct {
	// Indent: 缩进字符串；为空时输出紧凑 JSON。默认两个空格。
	Indent *string `json:"indent"`
}

type encoder struct {
	indent string
}

// New 创建 JSON 报告编码器。
func New(opts *Options) contract.Encoder {
	e := &encoder{indent: "  "}
	if opts != nil && opts.Indent != nil {
		e.indent = *opts.Indent
	}
	return e
}

func (e *encoder) Ext() string { return "json" }

// Encode 将报告编码为 JSON（以换行结尾）。
func (e *encoder) Encode(ctx context.Context, v any) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		b   []byte
		err error
	)
	if e.indent == "" {
		b, err = json.Marshal(v)
	} else {
		b, err = json.MarshalIndent(v, "", e.indent)
	}
	if err != nil {
		return nil, fmt.Errorf("encode json report: %w", err)
	}
	return bytes.NewReader(append(b, '\n')), nil
}

var _ contract.Encoder = (*encoder)(nil)
