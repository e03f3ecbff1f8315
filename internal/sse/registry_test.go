// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package sse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tickbridge/tickbridge/internal/sse"
)

func TestRegistry_SeededWithBuiltins(t *testing.T) {
	r := sse.NewRegistry(discardLogger())

	assert.Equal(t, []string{"connected", "gameState", "gameUpdate", "heartbeat", "error"}, r.Types())
	for _, typ := range sse.BuiltinEventTypes {
		assert.True(t, r.IsRegistered(typ), typ)
	}
}

func TestRegistry_RegisterAppends(t *testing.T) {
	r := sse.NewRegistry(discardLogger())

	assert.True(t, r.RegisterEventType("colonistDied"))
	assert.True(t, r.IsRegistered("colonistDied"))
	assert.Equal(t, "colonistDied", r.Types()[len(r.Types())-1])
}

func TestRegistry_DuplicateIsWarningNoOp(t *testing.T) {
	logger, buf := bufferLogger()
	r := sse.NewRegistry(logger)
	before := len(r.Types())

	assert.False(t, r.RegisterEventType("heartbeat"))

	assert.Len(t, r.Types(), before)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "event type already registered")
}

func TestRegistry_EmptyTypeRejected(t *testing.T) {
	r := sse.NewRegistry(discardLogger())
	assert.False(t, r.RegisterEventType(""))
	assert.False(t, r.IsRegistered(""))
}
