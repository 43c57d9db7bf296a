package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"TeethAnnotationServer/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
)

var (
	Registry = prometheus.NewRegistry()

	memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_Megabytes",
		Help: "Memory usage in Megabytes",
	})
	cpuUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "CPU usage in percent",
	})
	ProcessImageTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "process_image_requests_total",
		Help: "Total number of annotation requests, by outcome",
	}, []string{"success"})
	InferenceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "inference_duration_seconds",
		Help:    "Latency of calls to the inference backend",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	Registry.MustRegister(memUsage, cpuUsage, ProcessImageTotal, InferenceDuration)
}

// ObserveAnnotation records one finished annotation call.
func ObserveAnnotation(success bool, elapsed time.Duration) {
	ProcessImageTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
	InferenceDuration.Observe(elapsed.Seconds())
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

func checkProcessInfo(pcs *process.Process) {
	memInfo, err := pcs.MemoryInfo()
	if err == nil {
		memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	cpuPercent, err := pcs.CPUPercent()
	if err == nil {
		cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

// StartMon 在 port 上提供 /metrics，并每 500ms 采样一次进程资源，直到 ctx 结束
func StartMon(ctx context.Context, port int) {
	pcs, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.S().Errorf("monitor: cannot open own process %d: %v", os.Getpid(), err)
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.S().Errorf("Prometheus server ListenAndServe error: %v", err)
		}
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
checkPcs:
	for {
		select {
		case <-ctx.Done():
			break checkPcs
		case <-ticker.C:
			checkProcessInfo(pcs)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.S().Errorf("Prometheus server Shutdown error: %v", err)
	}
}
