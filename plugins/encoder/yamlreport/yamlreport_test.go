package yamlreport

import (
	"context"
	"io"
	"testing"

	"gopkg.in/yaml.v3"

	"acdverify/pkg/contract"
)

type sample struct {
	File   contract.FileID `yaml:"file"`
	Counts map[string]int  `yaml:"counts"`
	Notes  []string        `yaml:"notes,omitempty"`
}

// TestEncode 测试 YAML 输出可被解析回同一结构
func TestEncode(t *testing.T) {
	in := sample{File: "a.json", Counts: map[string]int{"cpu0.tor": 1, "metadata": 0}}
	r, err := New(nil).Encode(context.Background(), in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, _ := io.ReadAll(r)
	want := "file: a.json\ncounts:\n  cpu0.tor: 1\n  metadata: 0\n"
	if string(b) != want {
		t.Fatalf("got:\n%s\nwant:\n%s", b, want)
	}
	var out sample
	if err := yaml.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.File != in.File || out.Counts["cpu0.tor"] != 1 {
		t.Fatalf("round trip mismatch: %#v", out)
	}
}

// TestEncodeIndent 测试自定义缩进
func TestEncodeIndent(t *testing.T) {
	r, err := New(&Options{Indent: 4}).Encode(context.Background(), map[string]any{"a": map[string]int{"b": 1}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, _ := io.ReadAll(r)
	if string(b) != "a:\n    b: 1\n" {
		t.Fatalf("got %q", b)
	}
}

// TestExt 测试扩展名
func TestExt(t *testing.T) {
	if ext := New(nil).Ext(); ext != "yaml" {
		t.Fatalf("ext = %q", ext)
	}
}
