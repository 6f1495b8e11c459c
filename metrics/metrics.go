// Package metrics exposes Prometheus instrumentation for the conversation
// pipeline.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// States lists every session state label, so the state gauge always has
// exactly one series set to 1.
var States = []string{"idle", "connecting", "active", "error"}

// Metrics contains all Prometheus metrics for a session controller.
type Metrics struct {
	// Capture
	FramesCaptured prometheus.Counter
	ChunksSent     prometheus.Counter
	ChunksDropped  prometheus.Counter

	// Playback
	BuffersScheduled prometheus.Counter
	BufferDuration   prometheus.Histogram
	Interruptions    prometheus.Counter

	// Conversation
	Turns    prometheus.Counter
	State    *prometheus.GaugeVec
	Failures *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		FramesCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "speakup_capture_frames_total",
			Help: "Total number of microphone frames captured",
		}),
		ChunksSent: f.NewCounter(prometheus.CounterOpts{
			Name: "speakup_capture_chunks_sent_total",
			Help: "Total number of encoded audio chunks sent to the transport",
		}),
		ChunksDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "speakup_capture_chunks_dropped_total",
			Help: "Total number of audio chunks dropped because the send queue was full",
		}),
		BuffersScheduled: f.NewCounter(prometheus.CounterOpts{
			Name: "speakup_playback_buffers_total",
			Help: "Total number of assistant audio buffers scheduled",
		}),
		BufferDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "speakup_playback_buffer_duration_seconds",
			Help:    "Duration of scheduled assistant audio buffers",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}),
		Interruptions: f.NewCounter(prometheus.CounterOpts{
			Name: "speakup_playback_interruptions_total",
			Help: "Total number of times assistant playback was cut off by the user",
		}),
		Turns: f.NewCounter(prometheus.CounterOpts{
			Name: "speakup_turns_total",
			Help: "Total number of completed conversation turns",
		}),
		State: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "speakup_session_state",
			Help: "Current session state (1 for the active label)",
		}, []string{"state"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "speakup_session_failures_total",
			Help: "Total number of sessions that ended in error, by kind",
		}, []string{"kind"}),
	}
	m.StateChanged("idle")
	return m
}

func (m *Metrics) FrameCaptured() { m.FramesCaptured.Inc() }
func (m *Metrics) ChunkSent() { m.ChunksSent.Inc() }
func (m *Metrics) ChunkDropped() { m.ChunksDropped.Inc() }
func (m *Metrics) Interrupted() { m.Interruptions.Inc() }
func (m *Metrics) TurnCompleted() { m.Turns.Inc() }

func (m *Metrics) BufferScheduled(seconds float64) {
	m.BuffersScheduled.Inc()
	m.BufferDuration.Observe(seconds)
}

func (m *Metrics) StateChanged(state string) {
	for _, s := range States {
		v := 0.0
		if s == state {
			v = 1
		}
		m.State.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) SessionFailed(kind string) {
	m.Failures.WithLabelValues(kind).Inc()
}

// Handler serves the metrics gathered by g at /metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

// Serve exposes Handler(g) on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(g),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
