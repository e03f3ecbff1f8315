// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package camstream

// Error codes for camera streaming.
const (
	CodeBadFrame      = "CAMERA_BAD_FRAME"
	CodeBadPacket     = "CAMERA_BAD_PACKET"
	CodeInvalidSetup  = "CAMERA_INVALID_SETUP"
	CodeStreaming     = "CAMERA_STREAMING"
	CodeNotStreaming  = "CAMERA_NOT_STREAMING"
	CodeConnectFailed = "CAMERA_CONNECT_FAILED"
)
