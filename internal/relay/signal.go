package relay

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pion/webrtc/v4"
)

// Signal kinds used in logs and metrics. They never influence forwarding.
const (
	SignalKindCandidate = "candidate"
	SignalKindUnknown   = "unknown"
)

// classifySignal peeks at a signal payload to name it for logging. SDP
// messages report their pion SDPType ("offer", "answer", "pranswer",
// "rollback"). ICE candidates are recognised either as a bare
// RTCIceCandidateInit or wrapped under a "candidate" key.
func classifySignal(data json.RawMessage) string {
	var probe struct {
		Type      string          `json:"type"`
		Kind      string          `json:"kind"`
		Candidate json.RawMessage `json:"candidate"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return SignalKindUnknown
	}

	discriminator := probe.Type
	if discriminator == "" {
		discriminator = probe.Kind
	}
	if t := webrtc.NewSDPType(strings.ToLower(discriminator)); t != webrtc.SDPTypeUnknown {
		return t.String()
	}

	if len(probe.Candidate) > 0 {
		var nested webrtc.ICECandidateInit
		if err := json.Unmarshal(probe.Candidate, &nested); err == nil && nested.Candidate != "" {
			return SignalKindCandidate
		}
		var line string
		if err := json.Unmarshal(probe.Candidate, &line); err == nil {
			return SignalKindCandidate
		}
	}
	if strings.EqualFold(discriminator, SignalKindCandidate) {
		return SignalKindCandidate
	}
	return SignalKindUnknown
}

// emptyPayload reports whether a signal carries nothing worth forwarding:
// absent, JSON null, an empty string, or an empty object or array.
func emptyPayload(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return true
	}
	switch string(trimmed) {
	case "null", `""`, "{}", "[]":
		return true
	}
	return false
}
