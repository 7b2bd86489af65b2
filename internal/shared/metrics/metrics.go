package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	ingestionStartedTotal   atomic.Uint64
	ingestionCompletedTotal atomic.Uint64
	ingestionFailedTotal    atomic.Uint64
	aiFallbackTotal         atomic.Uint64
	workerJobsReceivedTotal atomic.Uint64
	workerJobsCompleted     atomic.Uint64
	workerJobsFailed        atomic.Uint64
	workerJobsDropped       atomic.Uint64

	ingestionDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncIngestionStarted counts a document entering processing.
func IncIngestionStarted() {
	ingestionStartedTotal.Add(1)
}

// IncIngestionCompleted counts a document reaching completed.
func IncIngestionCompleted() {
	ingestionCompletedTotal.Add(1)
}

// IncIngestionFailed counts a document reaching failed.
func IncIngestionFailed() {
	ingestionFailedTotal.Add(1)
}

// IncAIFallback counts topic extractions answered by the fallback.
func IncAIFallback() {
	aiFallbackTotal.Add(1)
}

// IncWorkerJobsReceived counts queue messages picked up by a worker.
func IncWorkerJobsReceived() {
	workerJobsReceivedTotal.Add(1)
}

// IncWorkerJobsCompleted counts queue messages handled and acknowledged.
func IncWorkerJobsCompleted() {
	workerJobsCompleted.Add(1)
}

// IncWorkerJobsFailed counts queue messages whose handler returned an error.
func IncWorkerJobsFailed() {
	workerJobsFailed.Add(1)
}

// IncWorkerJobsDropped counts unrecoverable messages deleted without processing.
func IncWorkerJobsDropped() {
	workerJobsDropped.Add(1)
}

// ObserveIngestionDurationMs records a pipeline duration in milliseconds.
func ObserveIngestionDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	ingestionDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "ingestion_started_total", "Total documents that entered processing", ingestionStartedTotal.Load())
	writeCounter(&buf, "ingestion_completed_total", "Total documents completed", ingestionCompletedTotal.Load())
	writeCounter(&buf, "ingestion_failed_total", "Total documents failed", ingestionFailedTotal.Load())
	writeCounter(&buf, "ai_fallback_total", "Total topic extractions served by the fallback", aiFallbackTotal.Load())
	writeCounter(&buf, "worker_jobs_received_total", "Total ingestion jobs received by workers", workerJobsReceivedTotal.Load())
	writeCounter(&buf, "worker_jobs_completed_total", "Total ingestion jobs acknowledged", workerJobsCompleted.Load())
	writeCounter(&buf, "worker_jobs_failed_total", "Total ingestion jobs that returned an error", workerJobsFailed.Load())
	writeCounter(&buf, "worker_jobs_dropped_total", "Total unrecoverable ingestion jobs dropped", workerJobsDropped.Load())
	writeHistogram(&buf, "ingestion_duration_ms", "Ingestion pipeline duration in milliseconds", ingestionDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SinceMillis returns the elapsed time since start in milliseconds.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
