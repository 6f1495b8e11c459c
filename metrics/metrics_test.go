package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"go.aimuz.me/speakup/livesession"
)

var _ livesession.Observer = (*Metrics)(nil)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.FrameCaptured()
	m.FrameCaptured()
	m.ChunkSent()
	m.ChunkDropped()
	m.BufferScheduled(0.2)
	m.BufferScheduled(0.3)
	m.Interrupted()
	m.TurnCompleted()
	m.SessionFailed("transport")
	m.SessionFailed("transport")

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"frames", m.FramesCaptured, 2},
		{"sent", m.ChunksSent, 1},
		{"dropped", m.ChunksDropped, 1},
		{"buffers", m.BuffersScheduled, 2},
		{"interruptions", m.Interruptions, 1},
		{"turns", m.Turns, 1},
		{"transport failures", m.Failures.WithLabelValues("transport"), 2},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStateGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	check := func(active string) {
		t.Helper()
		for _, s := range States {
			want := 0.0
			if s == active {
				want = 1
			}
			if got := testutil.ToFloat64(m.State.WithLabelValues(s)); got != want {
				t.Errorf("state{%s} = %v, want %v", s, got, want)
			}
		}
	}

	check("idle")
	m.StateChanged("connecting")
	check("connecting")
	m.StateChanged("active")
	check("active")
	m.StateChanged("error")
	check("error")
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.TurnCompleted()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{"speakup_turns_total 1", `speakup_session_state{state="idle"} 1`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Error("registering twice should panic")
		}
	}()
	New(reg)
}
