package main

import (
	"github.com/criyle/code-runner/workspace"
	"github.com/criyle/code-runner/worker"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	ginprometheus "github.com/zsais/go-gin-prometheus"
)

const (
	metricsNamespace = "code_runner"
)

var (
	// 1ms -> 10s
	timeBuckets = []float64{
		0.001, 0.002, 0.005, 0.008, 0.010, 0.025, 0.050, 0.075, 0.1, 0.2,
		0.4, 0.6, 0.8, 1.0, 1.5, 2, 5, 10,
	}

	// 4k (1<<12) -> 4g (1<<32)
	memoryBucket = prometheus.ExponentialBuckets(1<<12, 2, 21)

	execErrorCount = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "error",
		Help:      "Number of run requests that returned error",
	})

	execCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "executions_total",
		Help:      "Number of finished runs by message",
	}, []string{"message"})

	execTimeHist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "time_seconds",
		Help:      "Histogram for the running time",
		Buckets:   timeBuckets,
	}, []string{"message"})

	execMemHist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "memory_bytes",
		Help:      "Histgram for the peak resident memory",
		Buckets:   memoryBucket,
	}, []string{"message"})

	workspaceInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "workspace_in_use",
		Help:      "Total number of workspaces currently provisioned",
	})
)

func init() {
	prometheus.MustRegister(execErrorCount, execCount)
	prometheus.MustRegister(execTimeHist, execMemHist)
	prometheus.MustRegister(workspaceInUse)
}

func execObserve(res worker.Response) {
	if res.Error != nil {
		execErrorCount.Inc()
		return
	}
	msg := res.Result.Message
	execCount.WithLabelValues(msg).Inc()
	execTimeHist.WithLabelValues(msg).Observe(res.Result.RunTime.Seconds())
	if res.Result.Memory > 0 {
		execMemHist.WithLabelValues(msg).Observe(float64(res.Result.Memory))
	}
}

func workspaceTeardownObserve(*workspace.Workspace) {
	workspaceInUse.Dec()
}

func workspaceProvisionObserve(*workspace.Workspace) {
	workspaceInUse.Inc()
}

func initGinMetrics(r *gin.Engine) {
	p := ginprometheus.NewWithConfig(ginprometheus.Config{
		Subsystem:          "gin",
		DisableBodyReading: true,
	})
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		return c.FullPath()
	}
	r.Use(p.HandlerFunc())
}
