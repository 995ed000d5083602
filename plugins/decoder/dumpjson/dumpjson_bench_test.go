package dumpjson

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// BenchmarkDecode 基准测试 Decoder.Decode。
func BenchmarkDecode(b *testing.B) {
	dec, _ := New(nil)
	for _, n := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("regs=%d", n), func(b *testing.B) {
			src := makeDump(n)
			ctx := context.Background()
			b.SetBytes(int64(len(src)))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := dec.Decode(ctx, "dump.json", strings.NewReader(src)); err != nil {
					b.Fatalf("解码失败: %v", err)
				}
			}
		})
	}
}

// makeDump 构造含 n 个 uncore 寄存器的单 CPU dump。
func makeDump(n int) string {
	var sb strings.Builder
	sb.WriteString(`{"METADATA":{"_version":"0x1"},"PROCESSORS":{"cpu0":{"uncore":{`)
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, `"B%02d_D00_F0_0x%x":"0x%x"`, i%32, i, i)
	}
	sb.WriteString(`}}}}`)
	return sb.String()
}
