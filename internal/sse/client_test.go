// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package sse_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickbridge/tickbridge/internal/sse"
	"github.com/tickbridge/tickbridge/pkg/errutil"
)

func TestClient_CloseIsIdempotent(t *testing.T) {
	w := &recordingWriter{}
	c := sse.NewClient(w)

	assert.True(t, c.Close(), "first close performs the flip")
	assert.False(t, c.Close())
	assert.False(t, c.Connected())
	assert.Equal(t, 1, w.closeCount())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done should be closed")
	}
}

func TestClient_ConcurrentCloseFlipsOnce(t *testing.T) {
	w := &recordingWriter{}
	c := sse.NewClient(w)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		flips int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Close() {
				mu.Lock()
				flips++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, flips)
	assert.Equal(t, 1, w.closeCount())
}

func TestClient_SendAfterCloseFails(t *testing.T) {
	w := &recordingWriter{}
	c := sse.NewClient(w)
	c.Close()

	err := c.Send("x", []byte("1"))
	errutil.AssertErrorCode(t, err, sse.CodeClientClosed)
	assert.Empty(t, w.types())
}

func TestClient_WriteFailureDisconnects(t *testing.T) {
	w := &recordingWriter{fail: true}
	c := sse.NewClient(w)

	err := c.Send("gameUpdate", []byte("{}"))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, sse.CodeWriteFailed)
	errutil.AssertErrorContext(t, err, "event_type", "gameUpdate")
	assert.False(t, c.Connected())
}

func TestClient_SendUpdatesActivity(t *testing.T) {
	c := sse.NewClient(&recordingWriter{})
	before := c.LastActivity()

	require.NoError(t, c.Send("x", []byte("1")))
	assert.False(t, c.LastActivity().Before(before))
	assert.NotEmpty(t, c.ID())
	assert.Equal(t, "sse", c.Transport())
}
