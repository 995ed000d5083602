package diag

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 进程内指标，注册在私有 Registry 上：
// - acdverify_op_total{comp,stage,result}
// - acdverify_error_total{comp,code}
// - acdverify_op_duration_ms{comp,stage}
// - acdverify_files_total{result}
var (
	metricsOnce sync.Once
	registry    *prometheus.Registry

	opTotal    *prometheus.CounterVec
	errorTotal *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
	filesTotal *prometheus.CounterVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		registry = prometheus.NewRegistry()
		opTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acdverify",
			Name:      "op_total",
			Help:      "Number of pipeline stage operations.",
		}, []string{"comp", "stage", "result"})
		errorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acdverify",
			Name:      "error_total",
			Help:      "Number of classified errors per component.",
		}, []string{"comp", "code"})
		opDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "acdverify",
			Name:      "op_duration_ms",
			Help:      "Stage duration in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"comp", "stage"})
		filesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acdverify",
			Name:      "files_total",
			Help:      "Number of processed input files by result.",
		}, []string{"result"})
		registry.MustRegister(opTotal, errorTotal, opDuration, filesTotal)
	})
}

// Registry 返回指标注册表（供导出与测试）。
func Registry() *prometheus.Registry {
	initMetrics()
	return registry
}

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) {
	initMetrics()
	opTotal.WithLabelValues(comp, stage, result).Inc()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	initMetrics()
	errorTotal.WithLabelValues(comp, code).Inc()
}

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	initMetrics()
	opDuration.WithLabelValues(comp, stage).Observe(float64(durMS))
}

// IncFile 记录单个输入文件的结果（ok|failed）。
func IncFile(result string) {
	initMetrics()
	filesTotal.WithLabelValues(result).Inc()
}

// WriteTextfile 以 node_exporter textfile 格式原子写出全部指标。
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry())
}
