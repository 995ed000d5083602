package diag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
)

// Logger 为结构化事件日志器：JSON 行写入轮转文件，warn 及以上同时输出到控制台。
// 事件字段：comp、stage(start|finish|error|warn)、code、dur_ms、count、file_id、kv。
type Logger struct {
	sl   *slog.Logger
	sink io.Closer
}

// NewCorrID 生成一次运行的关联 ID。
func NewCorrID() string { return uuid.NewString() }

// NewLogger 通过配置的 level 初始化，日志写入 logs/acdverify-current.txt，10MiB 轮转。
func NewLogger(corrID, level string) *Logger {
	sink := NewRotatingFile("logs", 10*1024*1024)
	l := NewLoggerTo(sink, os.Stderr, corrID, level)
	l.sink = sink
	return l
}

// NewLoggerTo 使用给定的文件与控制台输出构造日志器；console 为 nil 时不输出控制台。
func NewLoggerTo(file, console io.Writer, corrID, level string) *Logger {
	lvl := ParseLevel(level)
	handlers := []slog.Handler{slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339))
			case slog.LevelKey:
				return slog.String(a.Key, strings.ToLower(a.Value.String()))
			}
			return a
		},
	})}
	if console != nil {
		consoleLvl := slog.LevelWarn
		if lvl > consoleLvl {
			consoleLvl = lvl
		}
		handlers = append(handlers, tint.NewHandler(console, &tint.Options{
			NoColor:    runtime.GOOS == "windows",
			Level:      consoleLvl,
			TimeFormat: time.TimeOnly,
		}))
	}
	sl := slog.New(fanout(handlers)).With(slog.String("corr_id", corrID))
	return &Logger{sl: sl}
}

// ParseLevel 解析 debug/info/warn/error；未知值按 info。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Close 关闭文件输出（若由 NewLogger 创建）。
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

// Event 为标准事件。
type Event struct {
	Comp   string
	Stage  string
	Code   string
	DurMS  int64
	Count  int64
	FileID string
	Msg    string
	KV     map[string]string
}

func (l *Logger) log(lv slog.Level, ev Event) {
	if l == nil || !l.sl.Enabled(context.Background(), lv) {
		return
	}
	attrs := make([]slog.Attr, 0, 7)
	attrs = append(attrs, slog.String("comp", ev.Comp), slog.String("stage", ev.Stage))
	if ev.Code != "" {
		attrs = append(attrs, slog.String("code", ev.Code))
	}
	if ev.DurMS != 0 {
		attrs = append(attrs, slog.Int64("dur_ms", ev.DurMS))
	}
	if ev.Count != 0 {
		attrs = append(attrs, slog.Int64("count", ev.Count))
	}
	if ev.FileID != "" {
		attrs = append(attrs, slog.String("file_id", ev.FileID))
	}
	if len(ev.KV) > 0 {
		keys := make([]string, 0, len(ev.KV))
		for k := range ev.KV {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		kv := make([]any, 0, len(keys))
		for _, k := range keys {
			kv = append(kv, slog.String(k, ev.KV[k]))
		}
		attrs = append(attrs, slog.Group("kv", kv...))
	}
	l.sl.LogAttrs(context.Background(), lv, ev.Msg, attrs...)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWith(comp, msg, "")
}

// StartWith 记录带 file_id 的 start。
func (l *Logger) StartWith(comp, msg, fileID string) *Timer {
	l.log(slog.LevelInfo, Event{Comp: comp, Stage: "start", FileID: fileID, Msg: msg})
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWith(comp, code, msg, durSince, "", nil)
}

// ErrorWith 支持 file_id 与附加键值。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID string, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(slog.LevelError, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, FileID: fileID, KV: kv})
}

// Warn 记录非致命告警（如构造期诊断）。
func (l *Logger) Warn(comp, msg, fileID string, kv map[string]string) {
	l.log(slog.LevelWarn, Event{Comp: comp, Stage: "warn", FileID: fileID, Msg: msg, KV: kv})
}

// Debug 输出调试事件（仅在 level=debug 时生效）。
func (l *Logger) Debug(comp, msg, fileID string, kv map[string]string) {
	l.log(slog.LevelDebug, Event{Comp: comp, Stage: "start", FileID: fileID, Msg: msg, KV: kv})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	t0     time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	t.l.log(slog.LevelInfo, Event{Comp: t.comp, Stage: "finish", DurMS: time.Since(t.t0).Milliseconds(), Count: count, FileID: t.fileID, Msg: msg})
}

// Since 返回计时起点至今的时长。
func (t *Timer) Since() time.Duration {
	if t == nil {
		return 0
	}
	return time.Since(t.t0)
}

// fanoutHandler 将记录分发给多个处理器。
type fanoutHandler []slog.Handler

func fanout(hs []slog.Handler) slog.Handler {
	if len(hs) == 1 {
		return hs[0]
	}
	return fanoutHandler(hs)
}

func (f fanoutHandler) Enabled(ctx context.Context, lv slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, lv) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
