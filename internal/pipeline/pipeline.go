package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"acdverify/internal/checks"
	"acdverify/internal/diag"
	"acdverify/internal/report"
	"acdverify/internal/topology"
	"acdverify/pkg/contract"
)

// 未开启 verbose 时每段自检错误的保留条数。
const trimSelfCheck = 3

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader  contract.Reader
	Decoder contract.Decoder
	Encoder contract.Encoder
	Writer  contract.Writer
}

// Settings 运行期配置。
type Settings struct {
	Inputs      []string
	Concurrency int

	// Compare: 参考 dump 路径；为空时不做比对。
	Compare string
	// Ignore: 段键名 → 比对时忽略的路径。
	Ignore map[string][]string

	Rules []checks.Rule
	Scope string

	// Regions 为空时使用默认区域。
	Regions []report.Region
	// Verbose: 输出完整自检列表。
	Verbose bool
}

// Outcome 为单个输入文件的处理结果。
type Outcome struct {
	File   contract.FileID
	Report contract.ArtifactID
	// Errors: 报告中的哨兵错误总数。
	Errors int
	// Check3Strike: 未执行该规则时为 nil。
	Check3Strike *bool
	Diagnostics  int
	Err          error
	Dur          time.Duration
}

// Result 为一次批处理的汇总。
type Result struct {
	Files  []Outcome
	Failed int
}

// Run 执行批处理：Reader → Decoder → topology.Resolve → report.Assemble → Encoder → Writer。
// 单文件失败记录在 Outcome 中且不中断批次；仅装配错误、参考 dump 失败与 Reader 错误作为返回错误。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Result, error) {
	if err := sanity(comp, set); err != nil {
		return Result{}, fmt.Errorf("sanity: %w", err)
	}

	opts := report.Options{
		Regions: set.Regions,
		Ignore:  set.Ignore,
		Rules:   set.Rules,
		Scope:   set.Scope,
	}
	if set.Compare != "" {
		ref, id, err := LoadDump(ctx, comp, set.Compare)
		if err != nil {
			logger.ErrorWith("pipeline", string(diag.Classify(err)), "load compare dump failed", nil, set.Compare, nil)
			return Result{}, fmt.Errorf("compare dump: %w", err)
		}
		opts.CompareDump, opts.CompareFile = ref, id
	}

	var (
		mu       sync.Mutex
		outcomes []indexed
		seq      int
	)
	p := pool.New().WithMaxGoroutines(set.Concurrency)
	iterErr := comp.Reader.Iterate(ctx, set.Inputs, func(id contract.FileID, rc io.ReadCloser) error {
		n := seq
		seq++
		// 池满时阻塞，形成背压；同时打开的文件不超过并发度 +1
		p.Go(func() {
			defer rc.Close()
			o := processFile(ctx, comp, set, opts, id, rc, logger)
			mu.Lock()
			outcomes = append(outcomes, indexed{n: n, o: o})
			mu.Unlock()
		})
		return nil
	})
	p.Wait()

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].n < outcomes[j].n })
	res := Result{Files: make([]Outcome, 0, len(outcomes))}
	for _, it := range outcomes {
		if it.o.Err != nil {
			res.Failed++
		}
		res.Files = append(res.Files, it.o)
	}
	if iterErr != nil {
		code := diag.Classify(iterErr)
		logger.Error("reader", string(code), "iterate failed", nil)
		diag.IncOp("reader", "iterate", "error")
		diag.IncError("reader", string(code))
		return res, fmt.Errorf("reader iterate: %w", iterErr)
	}
	return res, nil
}

type indexed struct {
	n int
	o Outcome
}

// processFile 处理单个文件；各阶段错误按组件记录日志与指标。
func processFile(ctx context.Context, comp Components, set Settings, opts report.Options, id contract.FileID, r io.Reader, logger *diag.Logger) (out Outcome) {
	start := time.Now()
	out.File = id
	term := diag.GetTerminal()
	term.FileStart(string(id))
	defer func() {
		out.Dur = time.Since(start)
		result := "ok"
		if out.Err != nil {
			result = "failed"
		}
		diag.IncFile(result)
		term.FileFinish(string(id), out.Err == nil, out.Errors, out.Dur)
	}()

	fail := func(stage string, err error) Outcome {
		code := diag.Classify(err)
		logger.ErrorWith(stage, string(code), err.Error(), &start, string(id), nil)
		diag.IncOp(stage, "error", "error")
		diag.IncError(stage, string(code))
		out.Err = fmt.Errorf("%s %s: %w", stage, id, err)
		return out
	}

	t := logger.StartWith("decoder", "decode", string(id))
	doc, err := comp.Decoder.Decode(ctx, id, r)
	if err != nil {
		return fail("decoder", err)
	}
	t.Finish("decode", int64(len(doc)))
	diag.IncOp("decoder", "finish", "success")
	diag.ObserveDuration("decoder", "decode", t.Since().Milliseconds())

	d, err := topology.Resolve(doc, topology.Options{})
	if err != nil {
		return fail("topology", err)
	}

	t = logger.StartWith("report", "assemble", string(id))
	rep, err := report.Assemble(id, d, opts)
	if err != nil {
		return fail("report", err)
	}
	t.Finish("assemble", int64(len(rep.Table)))
	diag.ObserveDuration("report", "assemble", t.Since().Milliseconds())
	for _, msg := range rep.Diagnostics {
		logger.Warn("report", msg, string(id), nil)
	}
	out.Errors = rep.ErrorCount()
	out.Diagnostics = len(rep.Diagnostics)
	if pass, ok := rep.Check3Strike(); ok {
		out.Check3Strike = &pass
	}

	view := rep
	if !set.Verbose {
		view = rep.Trimmed(trimSelfCheck)
	}
	enc, err := comp.Encoder.Encode(ctx, view)
	if err != nil {
		return fail("encoder", err)
	}

	out.Report = contract.ReportID(id, comp.Encoder.Ext())
	t = logger.StartWith("writer", "write", string(out.Report))
	if err := comp.Writer.Write(ctx, out.Report, enc); err != nil {
		return fail("writer", err)
	}
	t.Finish("write", 0)
	diag.IncOp("writer", "finish", "success")
	diag.ObserveDuration("writer", "write", t.Since().Milliseconds())
	return out
}

// LoadDump 通过 Reader 读取单个 dump 文件并解析拓扑（用于参考文件）。
func LoadDump(ctx context.Context, comp Components, path string) (*topology.CrashDump, contract.FileID, error) {
	var (
		d     *topology.CrashDump
		id    contract.FileID
		found bool
	)
	err := comp.Reader.Iterate(ctx, []string{path}, func(fid contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		if found {
			return fmt.Errorf("%w: %s matches more than one file", contract.ErrInvalidInput, path)
		}
		found, id = true, fid
		doc, err := comp.Decoder.Decode(ctx, fid, rc)
		if err != nil {
			return err
		}
		d, err = topology.Resolve(doc, topology.Options{})
		return err
	})
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, "", fmt.Errorf("%w: %s is not a readable file", contract.ErrInvalidInput, path)
	}
	return d, id, nil
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Decoder == nil || c.Encoder == nil || c.Writer == nil {
		return errors.New("nil component")
	}
	if s.Concurrency <= 0 {
		return errors.New("concurrency must be > 0")
	}
	return nil
}
