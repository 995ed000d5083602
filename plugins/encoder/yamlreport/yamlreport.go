package yamlreport

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"acdverify/pkg/contract"
)

// Options: YAML 报告编码选项。
type Options struct {
	// Indent: 缩进空格数，默认 2。
	Indent int `json:"indent"`
}

type encoder struct {
	indent int
}

// New 创建 YAML 报告编码器。
func New(opts *Options) contract.Encoder {
	e := &encoder{indent: 2}
	if opts != nil && opts.Indent > 0 {
		e.indent = opts.Indent
	}
	return e
}

func (e *encoder) Ext() string { return "yaml" }

func (e *encoder) Encode(ctx context.Context, v any) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(e.indent)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode yaml report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml report: %w", err)
	}
	return &buf, nil
}

var _ contract.Encoder = (*encoder)(nil)
