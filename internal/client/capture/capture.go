// Package capture owns the local outbound media tracks. The synthetic
// implementation feeds timed placeholder samples, which is enough for a
// headless client; rendering and real devices are a UI concern.
package capture

import (
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

var ErrNoDevice = errors.New("media capture unavailable")

// Capture is the local media the orchestrator attaches to every peer
// session. Toggling a kind pauses its source; the track itself stays
// attached so no renegotiation is needed.
type Capture interface {
	Tracks() []webrtc.TrackLocal
	Track(kind webrtc.RTPCodecType) webrtc.TrackLocal
	SetEnabled(kind webrtc.RTPCodecType, enabled bool)
	Enabled(kind webrtc.RTPCodecType) bool

	// StartScreen returns a fresh video source to swap into the video
	// senders. onEnded fires if the source stops on its own (not via
	// StopScreen), which must revert peers to the camera track.
	StartScreen(onEnded func()) (webrtc.TrackLocal, error)
	StopScreen()

	Close()
}

type source struct {
	track    *webrtc.TrackLocalStaticSample
	interval time.Duration

	mu      sync.Mutex
	enabled bool
	stop    chan struct{}
	stopped bool
}

func newSource(capability webrtc.RTPCodecCapability, id, stream string, interval time.Duration) (*source, error) {
	track, err := webrtc.NewTrackLocalStaticSample(capability, id, stream)
	if err != nil {
		return nil, err
	}
	s := &source{
		track:    track,
		interval: interval,
		enabled:  true,
		stop:     make(chan struct{}),
	}
	go s.loop()
	return s, nil
}

func (s *source) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	payload := make([]byte, 16)
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			enabled := s.enabled
			s.mu.Unlock()
			if !enabled {
				continue
			}
			if err := s.track.WriteSample(media.Sample{Data: payload, Duration: s.interval}); err != nil {
				log.Debug().Err(err).Str("module", "client.capture").Msg("write sample")
			}
		}
	}
}

func (s *source) setEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

func (s *source) isEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *source) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stop)
}

// Synthetic produces silence and blank frames on a steady clock.
type Synthetic struct {
	audio *source
	video *source

	mu     sync.Mutex
	screen *source
}

func NewSynthetic() (*Synthetic, error) {
	audio, err := newSource(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "meet-local", 20*time.Millisecond)
	if err != nil {
		return nil, err
	}
	video, err := newSource(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "meet-local", 33*time.Millisecond)
	if err != nil {
		audio.close()
		return nil, err
	}
	return &Synthetic{audio: audio, video: video}, nil
}

func (c *Synthetic) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{c.audio.track, c.video.track}
}

func (c *Synthetic) Track(kind webrtc.RTPCodecType) webrtc.TrackLocal {
	if kind == webrtc.RTPCodecTypeAudio {
		return c.audio.track
	}
	return c.video.track
}

func (c *Synthetic) SetEnabled(kind webrtc.RTPCodecType, enabled bool) {
	if kind == webrtc.RTPCodecTypeAudio {
		c.audio.setEnabled(enabled)
		return
	}
	c.video.setEnabled(enabled)
}

func (c *Synthetic) Enabled(kind webrtc.RTPCodecType) bool {
	if kind == webrtc.RTPCodecTypeAudio {
		return c.audio.isEnabled()
	}
	return c.video.isEnabled()
}

func (c *Synthetic) StartScreen(onEnded func()) (webrtc.TrackLocal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.screen != nil {
		c.screen.close()
	}
	screen, err := newSource(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "screen", "meet-screen", 33*time.Millisecond)
	if err != nil {
		return nil, err
	}
	_ = onEnded // the synthetic source never ends on its own
	c.screen = screen
	return screen.track, nil
}

func (c *Synthetic) StopScreen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.screen != nil {
		c.screen.close()
		c.screen = nil
	}
}

func (c *Synthetic) Close() {
	c.audio.close()
	c.video.close()
	c.StopScreen()
}
