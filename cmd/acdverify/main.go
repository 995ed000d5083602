package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jessevdk/go-flags"

	"acdverify/internal/checks"
	cfgpkg "acdverify/internal/config"
	"acdverify/internal/diag"
	"acdverify/internal/pipeline"
)

var pipelineRun = pipeline.Run

// 退出码
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 3
)

// options 为命令行参数；位置参数为 dump 文件或目录（"-" 表示 STDIN，不能与其他根混用）。
type options struct {
	Config         string `short:"c" long:"config" description:"配置文件路径（JSON）；缺省读取 ./config.json（若存在）"`
	Compare        string `long:"compare" description:"参考 dump 文件，与每个输入逐段比对" value-name:"FILE"`
	IgnoreList     bool   `long:"ignore-list" description:"比对时启用内置忽略清单（时间类键）"`
	IgnoreListFile string `long:"ignore-list-file" description:"额外的忽略清单文件（YAML/JSON）" value-name:"FILE"`
	Check3Strike   bool   `long:"check3strike" description:"执行三振检查"`
	CheckMaskMatch string `long:"check-mca-mask-match" description:"MCA 掩码匹配检查，形如 \"[[mask0, match0], [mask1, match1]]\"" value-name:"PAIRS"`
	CheckCPU       string `long:"check-cpu" description:"检查结果作用域：CPU（如 cpu0）"`
	CheckCore      string `long:"check-core" description:"检查结果作用域：core（如 core3）"`
	CheckThread    string `long:"check-thread" description:"检查结果作用域：thread（如 thread1）"`
	Verbose        bool   `short:"v" long:"verbose" description:"输出完整自检错误列表（默认每段前 3 条）"`
	Concurrency    int    `short:"j" long:"concurrency" description:"并发处理的文件数（覆盖配置）"`
	Format         string `short:"f" long:"format" description:"报告格式（覆盖配置）" choice:"json" choice:"yaml"`
	OutputDir      string `short:"o" long:"output-dir" description:"报告输出目录；缺省写在输入文件旁" value-name:"DIR"`
	MetricsFile    string `long:"metrics-file" description:"运行结束后写出 Prometheus textfile 指标" value-name:"FILE"`
	LogLevel       string `long:"log-level" description:"日志级别（覆盖配置）" choice:"debug" choice:"info" choice:"warn" choice:"error"`
	InitConfig     string `long:"init-config" description:"在指定目录生成默认 config.json 与 .env 模板（已存在则跳过）" optional:"yes" optional-value:"." value-name:"DIR"`
	Status         string `long:"status" description:"终端状态提示（stderr）：TTY 动态刷新，非 TTY 分行输出" choice:"on" choice:"off" default:"on"`

	Args struct {
		Inputs []string `positional-arg-name:"INPUT"`
	} `positional-args:"yes"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	start := time.Now()
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")

	var opt options
	parser := flags.NewParser(&opt, flags.Default)
	parser.Name = "acdverify"
	parser.Usage = "[OPTIONS] INPUT..."
	if _, err := parser.ParseArgs(args); err != nil {
		if flags.WroteHelp(err) {
			return exitOK
		}
		return exitConfig
	}

	corrID := diag.NewCorrID()
	logger := diag.NewLogger(corrID, "info")
	defer func() { _ = logger.Close() }()

	if opt.InitConfig != "" {
		if err := initConfig(strings.TrimSpace(opt.InitConfig)); err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Error("config", string(diag.Classify(err)), "init config failed", &start)
			return exitConfig
		}
		return exitOK
	}

	cfg, err := buildConfig(opt)
	if err != nil {
		fprintf(os.Stderr, "配置解析失败: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "load config failed", &start)
		return exitConfig
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		_ = dumpConfig(os.Stderr, cfg)
		logger.Error("config", string(diag.Classify(err)), "validate failed", &start)
		return exitConfig
	}

	// 使用最终配置中的日志级别重建 logger
	_ = logger.Close()
	logger = diag.NewLogger(corrID, cfg.Logging.Level)

	if err := preflightCheckOutputDir(cfg); err != nil {
		fprintf(os.Stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "preflight failed", &start)
		return exitConfig
	}

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "assemble failed", &start)
		return exitConfig
	}
	logger.Debug("config", "effective", "", cfgpkg.Summary(cfg))

	term := diag.NewTerminal(os.Stderr, opt.Status != "off")
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)
	term.RunStart(cfg.Concurrency)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	t := logger.Start("pipeline", "run")
	res, err := pipelineRun(ctx, comp, set, logger)
	printOutcomes(os.Stdout, res)
	code := exitOK
	if err != nil {
		c := string(diag.Classify(err))
		logger.Error("pipeline", c, err.Error(), &start)
		diag.IncOp("pipeline", "run", "error")
		diag.IncError("pipeline", c)
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		code = exitFailed
	} else {
		t.Finish("run", int64(len(res.Files)))
		diag.IncOp("pipeline", "run", "success")
		if res.Failed > 0 {
			code = exitFailed
		}
	}
	diag.ObserveDuration("pipeline", "run", time.Since(start).Milliseconds())
	term.RunFinish(code == exitOK, time.Since(start))

	if cfg.MetricsFile != "" {
		if err := diag.WriteTextfile(cfg.MetricsFile); err != nil {
			fprintf(os.Stderr, "指标写出失败: %v\n", err)
			logger.Error("metrics", string(diag.Classify(err)), "write textfile failed", nil)
		}
	}
	return code
}

// buildConfig 按优先级合并：默认值 < JSON 配置 < ENV < CLI。
func buildConfig(opt options) (cfgpkg.Config, error) {
	path := opt.Config
	if path == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	var raw []byte
	if s := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"); s != "" && path == "" {
		raw = []byte(s)
	}
	// 默认读取工作目录下 config.json（若存在）
	if path == "" && len(raw) == 0 {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}

	cfg := cfgpkg.Defaults()
	if path != "" || len(raw) > 0 {
		base, err := cfgpkg.LoadJSON(path, raw)
		if err != nil {
			return cfg, err
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	env, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, env)

	cli, err := cliOverlay(opt, cfg)
	if err != nil {
		return cfg, err
	}
	return cfgpkg.Merge(cfg, cli), nil
}

// cliOverlay 将命令行参数转为 Config 覆盖；cur 用于保留 writer 的其余选项。
func cliOverlay(opt options, cur cfgpkg.Config) (cfgpkg.Config, error) {
	var over cfgpkg.Config
	over.Inputs = opt.Args.Inputs
	over.Concurrency = opt.Concurrency
	over.Compare = opt.Compare
	over.Ignore = cfgpkg.Ignore{Default: opt.IgnoreList, File: opt.IgnoreListFile}
	over.Scope = checks.JoinScope(opt.CheckCPU, opt.CheckCore, opt.CheckThread)
	over.Verbose = opt.Verbose
	over.MetricsFile = opt.MetricsFile
	over.Logging.Level = opt.LogLevel
	over.Components.Encoder = opt.Format

	if opt.Check3Strike || opt.CheckMaskMatch != "" {
		over.Checks = map[string]json.RawMessage{}
	}
	if opt.Check3Strike {
		over.Checks[checks.ThreeStrikeName] = json.RawMessage(`{}`)
	}
	if opt.CheckMaskMatch != "" {
		pairs, err := checks.ParsePairs(opt.CheckMaskMatch)
		if err != nil {
			return over, err
		}
		raw, err := json.Marshal(checks.MaskMatchOptions{Pairs: pairs})
		if err != nil {
			return over, err
		}
		over.Checks[checks.MaskMatchName] = raw
	}
	if opt.OutputDir != "" {
		raw, err := cfgpkg.WithOutputDir(cur.Options.Writer, opt.OutputDir)
		if err != nil {
			return over, err
		}
		over.Options.Writer = raw
	}
	return over, nil
}

// printOutcomes 每个输入文件输出一行结果摘要。
func printOutcomes(w io.Writer, res pipeline.Result) {
	for _, o := range res.Files {
		if o.Err != nil {
			_, _ = fmt.Fprintf(w, "%s: FAILED: %v\n", o.File, o.Err)
			continue
		}
		line := fmt.Sprintf("%s: report=%s errors=%d", o.File, o.Report, o.Errors)
		if o.Diagnostics > 0 {
			line += fmt.Sprintf(" diagnostics=%d", o.Diagnostics)
		}
		if o.Check3Strike != nil {
			verdict := "fail"
			if *o.Check3Strike {
				verdict = "pass"
			}
			line += " check3strike=" + verdict
		}
		_, _ = fmt.Fprintln(w, line)
	}
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(w io.Writer, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "有效配置:\n%s\n", b)
	return err
}

// initConfig 在 dir 下生成 config.json 与 .env 模板；已存在的文件不覆盖。
func initConfig(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeConfig(filepath.Join(dir, "config.json"), cfgpkg.DefaultTemplateConfig()); err != nil && !os.IsExist(err) {
		return err
	}
	if err := writeDotEnv(filepath.Join(dir, ".env")); err != nil {
		fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	}
	return nil
}

func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(b, '\n'))
	return err
}

// loadDotEnv 读取简单的 .env 文件并注入进程环境。
// 跳过空行与 # 注释；支持 "export " 前缀；按首个 '=' 分割；
// 去除成对的外层引号（双引号内处理 \n \t \" \\）；不覆盖已存在的环境变量。
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := unquote(strings.TrimSpace(line[eq+1:]))
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}

func unquote(val string) string {
	if len(val) < 2 {
		return val
	}
	q := val[0]
	if (q != '\'' && q != '"') || val[len(val)-1] != q {
		return val
	}
	val = val[1 : len(val)-1]
	if q == '"' {
		val = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`, `\\`, `\`).Replace(val)
	}
	return val
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
func writeDotEnv(path string) error {
	var b strings.Builder
	p := cfgpkg.EnvPrefix
	b.WriteString("# acdverify .env 模板（由 --init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > JSON\n")
	b.WriteString("# 空值表示未设置。\n\n")
	b.WriteString("# 配置来源（二选一）\n")
	fmt.Fprintf(&b, "%sCONFIG_FILE=\n%sCONFIG_JSON=\n\n", p, p)
	b.WriteString("# 运行参数覆盖\n")
	for _, k := range []string{"INPUTS", "CONCURRENCY", "COMPARE", "IGNORE_LIST", "IGNORE_LIST_FILE", "CHECKS_JSON", "SCOPE", "REGIONS", "VERBOSE", "METRICS_FILE", "LOG_LEVEL"} {
		fmt.Fprintf(&b, "%s%s=\n", p, k)
	}
	b.WriteString("\n# 组件选择与选项（原样 JSON）\n")
	for _, c := range []string{"READER", "DECODER", "ENCODER", "WRITER"} {
		fmt.Fprintf(&b, "%sCOMPONENTS_%s=\n%sOPTIONS_%s_JSON=\n", p, c, p, c)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}

// preflightCheckOutputDir: fs writer 配置了 output_dir 时，启动前检查其可写性。
// 目录存在则尝试创建并删除临时文件；不存在则检查父目录可写。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	name := cfg.Components.Writer
	if name == "" {
		name = cfgpkg.Defaults().Components.Writer
	}
	if name != "fs" {
		return nil
	}
	var wopts struct {
		OutputDir string `json:"output_dir"`
	}
	if len(cfg.Options.Writer) > 0 {
		_ = json.Unmarshal(cfg.Options.Writer, &wopts)
	}
	dir := strings.TrimSpace(wopts.OutputDir)
	if dir == "" {
		// 就地写出：由 Writer 按文件报错
		return nil
	}
	st, err := os.Stat(dir)
	switch {
	case err == nil && st.IsDir():
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		_ = f.Close()
		return os.Remove(f.Name())
	case err == nil:
		return fmt.Errorf("路径存在但不是目录: %s", dir)
	case !os.IsNotExist(err):
		return err
	}
	parent := filepath.Dir(dir)
	pst, err := os.Stat(parent)
	if err != nil {
		return err
	}
	if !pst.IsDir() {
		return fmt.Errorf("父路径不是目录: %s", parent)
	}
	tmp, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	return os.RemoveAll(tmp)
}
