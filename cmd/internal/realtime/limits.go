package realtime

import "time"

// Wire limits for the chat protocol.
const (
	// Max bytes per websocket frame read. A maximal message_send envelope
	// (4000 runes of 4-byte UTF-8 plus envelope framing) stays well under this.
	maxFrameBytes = 32 << 10 // 32 KiB

	// Max message content length in runes, matching what the ledger stores.
	maxMessageChars = 4000
)

const (
	// Heartbeat defaults (overridable via PULSE_WS_* env in ws_gateway.go).
	heartbeatInterval = 20 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection event budget. Typing indicators dominate the event mix,
	// so the budget is far above any human send rate but short enough to cut
	// off a misbehaving client within one window.
	rateLimitEvents = 60
	rateLimitWindow = 5 * time.Second
)
