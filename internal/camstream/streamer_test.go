// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package camstream

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tickbridge/tickbridge/pkg/errutil"
)

type solidSource struct {
	renders int
}

func (s *solidSource) Render(img *image.RGBA) {
	s.renders++
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// listen opens a UDP receiver and returns a setup pointing at it.
func listen(t *testing.T) (net.PacketConn, Setup) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	setup := DefaultSetup()
	setup.Port = pc.LocalAddr().(*net.UDPAddr).Port
	setup.FrameWidth = 64
	setup.FrameHeight = 48
	return pc, setup
}

func receiveFrame(t *testing.T, pc net.PacketConn) []byte {
	t.Helper()
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(5*time.Second)))
	var r Reassembler
	buf := make([]byte, MaxPacketSize)
	for {
		n, _, err := pc.ReadFrom(buf)
		require.NoError(t, err)
		p, err := DecodePacket(bytes.Clone(buf[:n]))
		require.NoError(t, err)
		if frame, ok := r.Add(p); ok {
			return frame
		}
	}
}

func TestSetup_Normalize(t *testing.T) {
	base := DefaultSetup()

	low := base
	low.JPEGQuality = 1
	got, err := low.Normalize()
	require.NoError(t, err)
	assert.Equal(t, MinQuality, got.JPEGQuality)

	high := base
	high.JPEGQuality = 500
	got, err = high.Normalize()
	require.NoError(t, err)
	assert.Equal(t, MaxQuality, got.JPEGQuality)

	tests := []struct {
		name   string
		mutate func(*Setup)
		field  string
	}{
		{"no address", func(s *Setup) { s.Address = "" }, "address"},
		{"port zero", func(s *Setup) { s.Port = 0 }, "port"},
		{"port too high", func(s *Setup) { s.Port = 70000 }, "port"},
		{"zero width", func(s *Setup) { s.FrameWidth = 0 }, "frame_size"},
		{"huge height", func(s *Setup) { s.FrameHeight = MaxDim + 1 }, "frame_size"},
		{"zero fps", func(s *Setup) { s.TargetFPS = 0 }, "target_fps"},
		{"fps too high", func(s *Setup) { s.TargetFPS = MaxFPS + 1 }, "target_fps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mutate(&s)
			_, err := s.Normalize()
			errutil.AssertErrorCode(t, err, CodeInvalidSetup)
			errutil.AssertErrorContext(t, err, "field", tt.field)
		})
	}
}

func TestSetup_Target(t *testing.T) {
	assert.Equal(t, "127.0.0.1:5007", DefaultSetup().Target())
}

func TestStreamer_SendsJPEGFrames(t *testing.T) {
	defer goleak.VerifyNone(t)

	pc, setup := listen(t)
	src := &solidSource{}
	s, err := New(src, setup, WithLogger(discardLogger()))
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Streaming())

	s.Capture(time.Now())
	frame := receiveFrame(t, pc)

	img, err := jpeg.Decode(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
	r, _, _, _ := img.At(10, 10).RGBA()
	assert.Greater(t, r>>8, uint32(150))

	require.NoError(t, s.Stop())
	status := s.Status()
	assert.False(t, status.IsStreaming)
	assert.Equal(t, uint64(1), status.FramesSent)
	assert.Equal(t, 1, src.renders)
}

func TestStreamer_CaptureHonoursFrameInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, setup := listen(t)
	setup.TargetFPS = 10
	src := &solidSource{}
	s, err := New(src, setup, WithLogger(discardLogger()))
	require.NoError(t, err)

	s.Capture(time.Now())
	assert.Zero(t, src.renders, "stopped streamer must not render")

	require.NoError(t, s.Start(context.Background()))
	t0 := time.Now()
	s.Capture(t0)
	s.Capture(t0.Add(50 * time.Millisecond))
	s.Capture(t0.Add(100 * time.Millisecond))
	s.Capture(t0.Add(120 * time.Millisecond))
	require.NoError(t, s.Stop())

	assert.Equal(t, 2, src.renders)
	status := s.Status()
	assert.Equal(t, uint64(2), status.FramesSent+status.FramesDropped)
}

func TestStreamer_StateErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, setup := listen(t)
	s, err := New(&solidSource{}, setup, WithLogger(discardLogger()))
	require.NoError(t, err)

	errutil.AssertErrorCode(t, s.Stop(), CodeNotStreaming)

	require.NoError(t, s.Start(context.Background()))
	errutil.AssertErrorCode(t, s.Start(context.Background()), CodeStreaming)
	errutil.AssertErrorCode(t, s.Configure(setup), CodeStreaming)
	require.NoError(t, s.Stop())

	setup.TargetFPS = 30
	require.NoError(t, s.Configure(setup))
	assert.Equal(t, 30, s.Setup().TargetFPS)
}

func TestStreamer_DialFailure(t *testing.T) {
	dialErr := errors.New("network unreachable")
	s, err := New(&solidSource{}, DefaultSetup(),
		WithLogger(discardLogger()),
		WithDialer(func(context.Context, string, string) (net.Conn, error) {
			return nil, dialErr
		}))
	require.NoError(t, err)

	err = s.Start(context.Background())
	errutil.AssertErrorCode(t, err, CodeConnectFailed)
	assert.ErrorIs(t, err, dialErr)
	assert.False(t, s.Streaming())
}

func TestNew_RejectsInvalidSetup(t *testing.T) {
	setup := DefaultSetup()
	setup.Port = -1
	_, err := New(&solidSource{}, setup)
	errutil.AssertErrorCode(t, err, CodeInvalidSetup)
}

func TestEncode_ClampsQuality(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	(&solidSource{}).Render(img)

	lowest, err := Encode(img, -5)
	require.NoError(t, err)
	floor, err := Encode(img, MinQuality)
	require.NoError(t, err)
	assert.Equal(t, floor, lowest)
}
