// Package server defines the wire envelope and utility helpers that are
// reused across client and hub logic.
package server

import (
	"encoding/json"
	"strings"

	"github.com/Tyrowin/roomrelay/internal/relay"
)

// Envelope is the JSON frame exchanged in both directions:
// {"event": "<name>", "data": <payload>}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func encodeEvent(ev relay.Event) ([]byte, error) {
	return json.Marshal(outboundEnvelope{Event: ev.Name, Data: ev.Payload})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
