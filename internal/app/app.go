// Package app wires configuration, the session controller and its
// surroundings into a terminal conversation.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"go.aimuz.me/speakup/audiocapture"
	"go.aimuz.me/speakup/config"
	"go.aimuz.me/speakup/hotkey"
	"go.aimuz.me/speakup/langdetect"
	"go.aimuz.me/speakup/livesession"
	"go.aimuz.me/speakup/metrics"
	"go.aimuz.me/speakup/playback"
	"go.aimuz.me/speakup/transport"
)

// Options override the system defaults. Tests substitute fakes.
type Options struct {
	Transport transport.Transport // Default: built from config
	Devices   livesession.Devices // Default: system microphone and speaker
	Out       io.Writer           // Default: os.Stdout
}

// Service runs one conversation controller for the CLI.
// This struct focuses on orchestration; behavior lives in livesession.
type Service struct {
	cfg      *config.Config
	ctrl     *livesession.Controller
	console  *Console
	registry *prometheus.Registry
	hotkeys  *hotkey.Manager

	mu  sync.Mutex
	ctx context.Context // Run's context, used by hotkey actions
}

// New builds a Service from cfg.
func New(cfg *config.Config, opts Options) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tr := opts.Transport
	if tr == nil {
		var err error
		tr, err = livesession.NewTransport(livesession.TransportConfig{
			Backend:  cfg.Backend,
			APIKey:   cfg.APIKey(),
			Endpoint: cfg.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("create transport: %w", err)
		}
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	var detector livesession.LanguageDetector
	if len(cfg.DetectLanguages) > 0 {
		d, err := langdetect.New(cfg.DetectLanguages)
		if err != nil {
			slog.Warn("language detection disabled", "error", err)
		} else {
			detector = d
		}
	}

	ctrl, err := livesession.NewController(livesession.Config{
		Transport: tr,
		Session: transport.Config{
			Model:               cfg.Model,
			Voice:               cfg.Voice,
			SystemInstruction:   cfg.Prompt(),
			InputTranscription:  true,
			OutputTranscription: true,
		},
		Capture: audiocapture.Config{
			SampleRate: cfg.CaptureSampleRate,
			FrameSize:  cfg.FrameSize,
		},
		Playback:    playback.Config{SampleRate: cfg.PlaybackSampleRate},
		QueueSize:   cfg.QueueSize,
		QueuePolicy: livesession.QueuePolicy(cfg.QueuePolicy),
		Devices:     opts.Devices,
		Observer:    m,
		Detector:    detector,
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:      cfg,
		ctrl:     ctrl,
		console:  NewConsole(out),
		registry: registry,
	}, nil
}

// Controller returns the underlying session controller.
func (s *Service) Controller() *livesession.Controller {
	return s.ctrl
}

// Run starts a session and prints the conversation until ctx is cancelled.
// Without hotkeys it also returns once the session ends; with hotkeys the
// user can restart, so it keeps running.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if s.cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, s.cfg.MetricsAddr, s.registry); err != nil {
				slog.Error("metrics server", "error", err)
			}
		}()
	}

	interactive := s.setupHotkeys()
	defer s.shutdown()

	s.console.Banner(s.ctrl.Status().Backend, interactive)
	if err := s.ctrl.Start(ctx); err != nil {
		if !interactive {
			return err
		}
		slog.Error("start session", "error", err)
	}

	Forward(ctx, s.ctrl.Events(), func(e livesession.Event) bool {
		s.console.Render(e)
		if interactive {
			return true
		}
		se, ok := e.(livesession.StateEvent)
		if !ok {
			return true
		}
		return se.State != livesession.Idle && se.State != livesession.Error
	})
	if interactive {
		return nil
	}
	return s.ctrl.Err()
}

// Toggle starts the session when idle or failed and stops it otherwise.
func (s *Service) Toggle() {
	switch s.ctrl.State() {
	case livesession.Connecting, livesession.Active:
		_ = s.ctrl.Stop()
	default:
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := s.ctrl.Start(ctx); err != nil {
			slog.Error("start session", "error", err)
		}
	}
}

// NewConversation clears the transcript and feedback.
func (s *Service) NewConversation() {
	s.ctrl.Reset()
}

func (s *Service) setupHotkeys() bool {
	if !s.cfg.Hotkeys {
		return false
	}
	s.hotkeys = hotkey.NewManager(
		hotkey.Binding{Combo: hotkey.ComboToggle, Action: s.Toggle},
		hotkey.Binding{Combo: hotkey.ComboReset, Action: s.NewConversation},
	)
	if err := s.hotkeys.Start(); err != nil {
		slog.Warn("hotkeys unavailable", "error", err)
		s.hotkeys = nil
		return false
	}
	return true
}

func (s *Service) shutdown() {
	if s.hotkeys != nil {
		s.hotkeys.Stop()
	}
	_ = s.ctrl.Stop()
	s.console.Summary(s.ctrl.Status())
}
