package filesystem

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"acdverify/pkg/contract"
)

func collect(t *testing.T, r *FileSystem, roots ...string) []string {
	t.Helper()
	var files []string
	err := r.Iterate(context.Background(), roots, func(id contract.FileID, rc io.ReadCloser) error {
		files = append(files, string(id))
		return rc.Close()
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	return files
}

func mustNew(t *testing.T, opts *Options) *FileSystem {
	t.Helper()
	r, err := New(opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return r
}

// TestIterateSingleFile 显式文件根不受 include 限制
func TestIterateSingleFile(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "a.txt")
	os.WriteFile(fp, []byte("hello"), 0o644)
	r := mustNew(t, nil)
	var got []byte
	err := r.Iterate(context.Background(), []string{fp}, func(id contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		got = append(got, b...)
		if id != contract.NormalizeFileID(fp) {
			t.Fatalf("file id mismatch %s", id)
		}
		return nil
	})
	if err != nil || string(got) != "hello" {
		t.Fatalf("iterate: %v %q", err, string(got))
	}
}

// TestWalkDirDefaultPatterns 目录扫描只取 *.json，跳过 *_report.*，按字典序先子目录后文件
func TestWalkDirDefaultPatterns(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "b.json"), []byte("{}"), 0o644)
	os.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0o644)
	os.WriteFile(filepath.Join(dir, "a_report.json"), []byte("{}"), 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	os.Mkdir(filepath.Join(dir, "sub"), 0o755)
	os.WriteFile(filepath.Join(dir, "sub", "c.json"), []byte("{}"), 0o644)

	var base []string
	for _, f := range collect(t, mustNew(t, nil), dir) {
		base = append(base, filepath.Base(f))
	}
	if strings.Join(base, ",") != "c.json,a.json,b.json" {
		t.Fatalf("unexpected files %v", base)
	}
}

// TestWalkDirCustomPatterns 自定义 include/exclude
func TestWalkDirCustomPatterns(t *testing.T) {
	dir := t.TempDir()
	os.Mkdir(filepath.Join(dir, "golden"), 0o755)
	os.WriteFile(filepath.Join(dir, "golden", "g.json"), []byte("{}"), 0o644)
	os.WriteFile(filepath.Join(dir, "x.dump"), []byte("{}"), 0o644)

	r := mustNew(t, &Options{Include: []string{"**/*.dump", "**/*.json"}, Exclude: []string{"golden/**"}})
	files := collect(t, r, dir)
	if len(files) != 1 || filepath.Base(files[0]) != "x.dump" {
		t.Fatalf("unexpected files %v", files)
	}
}

// TestNewInvalidPattern 非法模式在构造时报错
func TestNewInvalidPattern(t *testing.T) {
	_, err := New(&Options{Include: []string{"[a-"}})
	if !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("expect ErrInvalidInput, got %v", err)
	}
}

// TestExcludeDir 跳过目录
func TestExcludeDir(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "keep.json"), []byte("k"), 0o644)
	skipDir := filepath.Join(dir, "Skip")
	os.Mkdir(skipDir, 0o755)
	os.WriteFile(filepath.Join(skipDir, "bad.json"), []byte("b"), 0o644)

	files := collect(t, mustNew(t, &Options{ExcludeDirNames: []string{"skip"}}), dir)
	if len(files) != 1 || !strings.Contains(files[0], "keep.json") {
		t.Fatalf("exclude failed: %#v", files)
	}
}

// TestIterateDashMix 混用 '-' 返回错误
func TestIterateDashMix(t *testing.T) {
	r := mustNew(t, nil)
	err := r.Iterate(context.Background(), []string{"-", "a"}, func(contract.FileID, io.ReadCloser) error { return nil })
	if err == nil {
		t.Fatalf("expect error for dash mix")
	}
}

// TestIterateStdin roots 为空或为 '-' 时读取 STDIN
func TestIterateStdin(t *testing.T) {
	for _, roots := range [][]string{nil, {"-"}} {
		r := mustNew(t, nil)
		old := os.Stdin
		pr, pw, _ := os.Pipe()
		os.Stdin = pr
		go func() {
			pw.Write([]byte("hi"))
			pw.Close()
		}()
		var data []byte
		err := r.Iterate(context.Background(), roots, func(id contract.FileID, rc io.ReadCloser) error {
			defer rc.Close()
			if id != "stdin" {
				t.Fatalf("id=%s", id)
			}
			data, _ = io.ReadAll(rc)
			return nil
		})
		os.Stdin = old
		if err != nil || string(data) != "hi" {
			t.Fatalf("stdin %v: %v %q", roots, err, string(data))
		}
	}
}

// TestIterateCtxCancel 上下文取消
func TestIterateCtxCancel(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "a.json")
	os.WriteFile(fp, []byte("x"), 0o644)
	r := mustNew(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Iterate(ctx, []string{fp}, func(contract.FileID, io.ReadCloser) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expect ctx cancel, got %v", err)
	}
}

// TestYieldErrorStops yield 出错时中止遍历并返回该错误
func TestYieldErrorStops(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.json"), []byte("{}"), 0o644)
	stop := errors.New("stop")
	n := 0
	err := mustNew(t, nil).Iterate(context.Background(), []string{dir}, func(contract.FileID, io.ReadCloser) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) || n != 1 {
		t.Fatalf("err=%v n=%d", err, n)
	}
}

// TestIterateMissingRoot 根不存在返回 *os.PathError
func TestIterateMissingRoot(t *testing.T) {
	err := mustNew(t, nil).Iterate(context.Background(), []string{filepath.Join(t.TempDir(), "none")}, func(contract.FileID, io.ReadCloser) error { return nil })
	var pe *os.PathError
	if !errors.As(err, &pe) {
		t.Fatalf("expect PathError, got %v", err)
	}
}

// TestNewBufferedCloserDefault bufSize<=0 时使用默认
func TestNewBufferedCloserDefault(t *testing.T) {
	bc := newBufferedCloser(io.NopCloser(strings.NewReader("")), 0)
	if bc.Reader == nil {
		t.Fatalf("nil reader")
	}
	bc.Close()
}
