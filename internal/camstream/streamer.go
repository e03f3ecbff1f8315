// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package camstream

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
)

// Setup limits. JPEG quality is clamped, the others are rejected.
const (
	MinQuality = 10
	MaxQuality = 100
	MaxFPS     = 60
	MaxDim     = 4096
)

// Setup is the stream target and frame format.
type Setup struct {
	Address     string `json:"address"`
	Port        int    `json:"port"`
	FrameWidth  int    `json:"frame_width"`
	FrameHeight int    `json:"frame_height"`
	TargetFPS   int    `json:"target_fps"`
	JPEGQuality int    `json:"jpeg_quality"`
}

// DefaultSetup streams 1280x720 at 15 fps to 127.0.0.1:5007.
func DefaultSetup() Setup {
	return Setup{
		Address:     "127.0.0.1",
		Port:        5007,
		FrameWidth:  1280,
		FrameHeight: 720,
		TargetFPS:   15,
		JPEGQuality: 50,
	}
}

// Target returns the host:port the stream is sent to.
func (s Setup) Target() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// Normalize clamps quality into MinQuality..MaxQuality and rejects
// settings that cannot produce a stream.
func (s Setup) Normalize() (Setup, error) {
	s.JPEGQuality = min(max(s.JPEGQuality, MinQuality), MaxQuality)
	invalid := func(field, format string, args ...any) error {
		return oops.Code(CodeInvalidSetup).With("field", field).Errorf(format, args...)
	}
	switch {
	case s.Address == "":
		return s, invalid("address", "address is required")
	case s.Port <= 0 || s.Port > 65535:
		return s, invalid("port", "port must be between 1 and 65535")
	case s.FrameWidth <= 0 || s.FrameWidth > MaxDim || s.FrameHeight <= 0 || s.FrameHeight > MaxDim:
		return s, invalid("frame_size", "frame size must be between 1 and %d", MaxDim)
	case s.TargetFPS <= 0 || s.TargetFPS > MaxFPS:
		return s, invalid("target_fps", "target fps must be between 1 and %d", MaxFPS)
	}
	return s, nil
}

// FrameSource draws the current view. It is called on the main loop.
type FrameSource interface {
	Render(img *image.RGBA)
}

// Status reports the streamer state.
type Status struct {
	IsStreaming   bool   `json:"is_streaming"`
	Setup         Setup  `json:"setup"`
	FramesSent    uint64 `json:"frames_sent"`
	FramesDropped uint64 `json:"frames_dropped"`
}

// DialFunc opens the UDP connection.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Option configures a Streamer.
type Option func(*Streamer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Streamer) {
		s.logger = logger
	}
}

// WithDialer replaces the UDP dialer.
func WithDialer(dial DialFunc) Option {
	return func(s *Streamer) {
		s.dial = dial
	}
}

type frame struct {
	img     *image.RGBA
	quality int
}

// Streamer captures frames on the main loop and sends them from a
// background goroutine. When the sender is still busy with the previous
// frame, the new one is dropped.
type Streamer struct {
	source FrameSource
	logger *slog.Logger
	dial   DialFunc

	mu       sync.Mutex
	setup    Setup
	conn     net.Conn
	frames   chan frame
	done     chan struct{}
	lastShot time.Time

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// New creates a stopped streamer.
func New(source FrameSource, setup Setup, opts ...Option) (*Streamer, error) {
	setup, err := setup.Normalize()
	if err != nil {
		return nil, err
	}
	d := &net.Dialer{}
	s := &Streamer{
		source: source,
		logger: slog.Default(),
		dial:   d.DialContext,
		setup:  setup,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Configure replaces the setup. It fails while streaming.
func (s *Streamer) Configure(setup Setup) error {
	setup, err := setup.Normalize()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return oops.Code(CodeStreaming).Errorf("cannot change setup while streaming, stop the stream first")
	}
	s.setup = setup
	return nil
}

// Setup returns the current setup.
func (s *Streamer) Setup() Setup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setup
}

// Streaming reports whether the stream is running.
func (s *Streamer) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Status returns the current state and counters.
func (s *Streamer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		IsStreaming:   s.conn != nil,
		Setup:         s.setup,
		FramesSent:    s.sent.Load(),
		FramesDropped: s.dropped.Load(),
	}
}

// Start connects to the target and starts the sender.
func (s *Streamer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return oops.Code(CodeStreaming).Errorf("already streaming")
	}

	conn, err := s.dial(ctx, "udp", s.setup.Target())
	if err != nil {
		return oops.Code(CodeConnectFailed).With("target", s.setup.Target()).Wrapf(err, "connect camera stream")
	}

	s.conn = conn
	s.frames = make(chan frame, 1)
	s.done = make(chan struct{})
	s.lastShot = time.Time{}
	go s.send(conn, s.frames, s.done)

	s.logger.Info("camera stream started",
		"target", s.setup.Target(),
		"width", s.setup.FrameWidth,
		"height", s.setup.FrameHeight,
		"fps", s.setup.TargetFPS,
		"quality", s.setup.JPEGQuality)
	return nil
}

// Stop ends the stream after the sender finishes its current frame.
func (s *Streamer) Stop() error {
	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return oops.Code(CodeNotStreaming).Errorf("not streaming")
	}
	conn, frames, done := s.conn, s.frames, s.done
	s.conn, s.frames, s.done = nil, nil, nil
	s.mu.Unlock()

	close(frames)
	<-done
	if err := conn.Close(); err != nil {
		return oops.Wrapf(err, "close camera stream")
	}
	s.logger.Info("camera stream stopped", "frames_sent", s.sent.Load(), "frames_dropped", s.dropped.Load())
	return nil
}

// Capture renders a frame if the stream is running and the frame interval
// has elapsed since the last one. It must be called on the main loop.
func (s *Streamer) Capture(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return
	}
	interval := time.Second / time.Duration(s.setup.TargetFPS)
	if !s.lastShot.IsZero() && now.Sub(s.lastShot) < interval {
		return
	}
	s.lastShot = now

	img := image.NewRGBA(image.Rect(0, 0, s.setup.FrameWidth, s.setup.FrameHeight))
	s.source.Render(img)

	select {
	case s.frames <- frame{img: img, quality: s.setup.JPEGQuality}:
	default:
		s.dropped.Add(1)
		Frames.WithLabelValues(outcomeDropped).Inc()
	}
}

// Hook adapts Capture to a per-tick callback using the wall clock.
func (s *Streamer) Hook() func(tick uint64) {
	return func(uint64) {
		s.Capture(time.Now())
	}
}

func (s *Streamer) send(conn net.Conn, frames <-chan frame, done chan<- struct{}) {
	defer close(done)
	for f := range frames {
		if err := s.sendFrame(conn, f); err != nil {
			Frames.WithLabelValues(outcomeFailed).Inc()
			s.logger.Warn("camera frame not sent", "error", err)
			continue
		}
		s.sent.Add(1)
		Frames.WithLabelValues(outcomeSent).Inc()
	}
}

func (s *Streamer) sendFrame(conn net.Conn, f frame) error {
	data, err := Encode(f.img, f.quality)
	if err != nil {
		return err
	}
	FrameBytes.Observe(float64(len(data)))

	packets, err := Packetize(data)
	if err != nil {
		return err
	}
	for _, p := range packets {
		if _, err := conn.Write(p); err != nil {
			return oops.Code(CodeBadFrame).Wrapf(err, "write camera packet")
		}
		PacketsSent.Inc()
	}
	return nil
}

// Encode compresses img as JPEG with quality clamped to MinQuality..MaxQuality.
func Encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	q := min(max(quality, MinQuality), MaxQuality)
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, oops.Code(CodeBadFrame).Wrapf(err, "encode jpeg")
	}
	return buf.Bytes(), nil
}
