//go:build cgo

package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process; sessions share it and each
// opens its own player.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoCfg  Config
	otoErr  error
)

func otoContext(cfg Config) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: cfg.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   100 * time.Millisecond,
		})
		if err != nil {
			otoErr = fmt.Errorf("init speaker: %w", err)
			return
		}
		<-ready
		otoCtx, otoCfg = ctx, cfg
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoCfg != cfg {
		return nil, ErrRateMismatch
	}
	return otoCtx, nil
}

// Speaker is the system output device: a Mixer pulled by an oto player.
type Speaker struct {
	*Mixer

	closeOnce sync.Once
	player    *oto.Player
}

// OpenSpeaker opens the default output device.
func OpenSpeaker(cfg Config) (*Speaker, error) {
	cfg = cfg.withDefaults()
	ctx, err := otoContext(cfg)
	if err != nil {
		return nil, err
	}

	mixer := NewMixer(cfg)
	player := ctx.NewPlayer(mixer)
	player.Play()

	slog.Info("speaker opened", "sampleRate", cfg.SampleRate, "channels", cfg.Channels)
	return &Speaker{Mixer: mixer, player: player}, nil
}

// Close stops the player and releases the mixer.
func (s *Speaker) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.Mixer.Close()
		s.player.Pause()
		err = s.player.Close()
		slog.Info("speaker closed")
	})
	return err
}
