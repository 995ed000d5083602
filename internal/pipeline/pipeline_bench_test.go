package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"acdverify/pkg/contract"
	ddump "acdverify/plugins/decoder/dumpjson"
	ejson "acdverify/plugins/encoder/jsonreport"
	rfs "acdverify/plugins/reader/filesystem"
)

type discardWriter struct{}

func (discardWriter) Write(_ context.Context, _ contract.ArtifactID, r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

// BenchmarkRun 基准测试多文件批处理。
func BenchmarkRun(b *testing.B) {
	dir := b.TempDir()
	for i := 0; i < 16; i++ {
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("dump%02d.json", i)), []byte(dumpA), 0o644); err != nil {
			b.Fatal(err)
		}
	}
	r, _ := rfs.New(nil)
	dec, _ := ddump.New(nil)
	comp := Components{Reader: r, Decoder: dec, Encoder: ejson.New(nil), Writer: discardWriter{}}
	for _, c := range []int{1, 4} {
		b.Run(fmt.Sprintf("concurrency=%d", c), func(b *testing.B) {
			set := Settings{Inputs: []string{dir}, Concurrency: c}
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				res, err := Run(context.Background(), comp, set, nil)
				if err != nil || res.Failed > 0 {
					b.Fatalf("run: %v failed=%d", err, res.Failed)
				}
			}
		})
	}
}
