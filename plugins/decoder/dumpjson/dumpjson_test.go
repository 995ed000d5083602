package dumpjson

import (
	"context"
	"errors"
	"strings"
	"testing"

	"acdverify/pkg/contract"
)

const sample = `{
  "METADATA": {"_version": "0x1", "cpu0": {"cpuid": "0x806F8"}},
  "PROCESSORS": {
    "cpu0": {
      "MCA": {"core0": {"bank0_status": "0x10", "list": [1, "0x2", null]}},
      "big_core": {"flag": true, "off": false, "reg": 18446744073709551615}
    }
  }
}`

func decode(t *testing.T, raw string, src string) (contract.Tree, error) {
	t.Helper()
	d, err := New([]byte(raw))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return d.Decode(context.Background(), "dump.json", strings.NewReader(src))
}

// TestDecodeSuccess 测试正常解码与值域转换
func TestDecodeSuccess(t *testing.T) {
	tree, err := decode(t, "", sample)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	meta, ok := tree.Child("METADATA")
	if !ok {
		t.Fatalf("METADATA missing")
	}
	if v, _ := meta.String("_version"); v != "0x1" {
		t.Fatalf("_version = %q", v)
	}
	cpu, _ := tree["PROCESSORS"].(contract.Tree).Child("cpu0")
	core, _ := cpu["MCA"].(contract.Tree).Child("core0")
	list, ok := core["list"].([]any)
	if !ok || len(list) != 3 {
		t.Fatalf("list = %#v", core["list"])
	}
	if list[0] != contract.Number("1") || list[1] != "0x2" || list[2] != nil {
		t.Fatalf("list items = %#v", list)
	}
	bc, _ := cpu.Child("big_core")
	if bc["flag"] != true || bc["off"] != false {
		t.Fatalf("bools = %#v", bc)
	}
	// 64 位数字保留字面量，不经浮点
	if bc["reg"] != contract.Number("18446744073709551615") {
		t.Fatalf("reg = %#v", bc["reg"])
	}
}

// TestDecodeEnvelope 测试 crash_data 外层包装
func TestDecodeEnvelope(t *testing.T) {
	tree, err := decode(t, "", `{"crash_data": `+sample+`}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := tree["crash_data"]; ok {
		t.Fatalf("envelope not unwrapped")
	}
	if _, ok := tree.Child("PROCESSORS"); !ok {
		t.Fatalf("PROCESSORS missing")
	}

	// 关闭包装后，顶层缺少必需键
	_, err = decode(t, `{"envelope": ""}`, `{"crash_data": `+sample+`}`)
	if !errors.Is(err, contract.ErrStructureInvalid) {
		t.Fatalf("expect ErrStructureInvalid, got %v", err)
	}
}

// TestDecodeInvalidJSON 测试非法 JSON
func TestDecodeInvalidJSON(t *testing.T) {
	for _, src := range []string{"", "not json", `{"METADATA": {}`, `{"a":1}{"b":2}`} {
		_, err := decode(t, "", src)
		if !errors.Is(err, contract.ErrDocumentInvalid) {
			t.Fatalf("%q: expect ErrDocumentInvalid, got %v", src, err)
		}
	}
}

// TestDecodeStructure 测试必需键缺失
func TestDecodeStructure(t *testing.T) {
	cases := map[string]string{
		"数组顶层":          `[1, 2]`,
		"缺 METADATA":    `{"PROCESSORS": {}}`,
		"缺 PROCESSORS":  `{"METADATA": {}}`,
		"PROCESSORS 非对象": `{"METADATA": {}, "PROCESSORS": "x"}`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decode(t, "", src)
			if !errors.Is(err, contract.ErrStructureInvalid) {
				t.Fatalf("expect ErrStructureInvalid, got %v", err)
			}
		})
	}
}

// TestDecodeMaxBytes 测试读取上限
func TestDecodeMaxBytes(t *testing.T) {
	_, err := decode(t, `{"max_bytes": 16}`, sample)
	if !errors.Is(err, contract.ErrDocumentInvalid) {
		t.Fatalf("expect ErrDocumentInvalid, got %v", err)
	}
}

// TestNewUnknownOption 测试未知选项被拒绝
func TestNewUnknownOption(t *testing.T) {
	if _, err := New([]byte(`{"bogus": 1}`)); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("expect ErrInvalidInput, got %v", err)
	}
}

// TestDecodeCanceled 测试取消的上下文
func TestDecodeCanceled(t *testing.T) {
	d, _ := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Decode(ctx, "dump.json", strings.NewReader(sample)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expect context.Canceled, got %v", err)
	}
}

// TestDecodeReaderError 测试读错误透传
func TestDecodeReaderError(t *testing.T) {
	d, _ := New(nil)
	boom := errors.New("boom")
	if _, err := d.Decode(context.Background(), "dump.json", errReader{boom}); !errors.Is(err, boom) {
		t.Fatalf("expect boom, got %v", err)
	}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
