package tools

import (
	"encoding/json"
	"fmt"
)

// Reason identifies why a tool call failed. Reasons are part of the
// conversation record: they are encoded into the tool result the model
// sees and the store persists.
type Reason string

const (
	ReasonUnknownTool         Reason = "unknown_tool"
	ReasonInvalidArguments    Reason = "invalid_arguments"
	ReasonLocationNotFound    Reason = "location_not_found"
	ReasonUpstreamUnavailable Reason = "upstream_unavailable"
	ReasonKeyGenerationFailed Reason = "key_generation_failed"
	ReasonInvalidAddress      Reason = "invalid_address"
	ReasonRPCUnavailable      Reason = "rpc_unavailable"
	ReasonInsufficientFunds   Reason = "insufficient_funds"
	ReasonSigningFailed       Reason = "signing_failed"
)

// Outcome is the uniform result envelope for every tool call. Dispatch
// never returns an error: infrastructure problems belong to the caller's
// layer, while tool-level failures are data the model reacts to.
type Outcome struct {
	OK      bool           `json:"ok"`
	Payload map[string]any `json:"payload,omitempty"`
	Reason  Reason         `json:"reason,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Success wraps a tool-specific payload.
func Success(payload map[string]any) Outcome {
	return Outcome{OK: true, Payload: payload}
}

// Failure wraps a reason code and a human-readable message.
func Failure(reason Reason, format string, args ...any) Outcome {
	return Outcome{OK: false, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Encode renders the outcome as JSON for the tool_result content block.
func (o Outcome) Encode() string {
	data, err := json.Marshal(o)
	if err != nil {
		// Payload values come from our own handlers; this should not
		// happen. Give the model something parseable anyway.
		return fmt.Sprintf(`{"ok":false,"reason":"%s","message":"encode outcome: %v"}`, ReasonUpstreamUnavailable, err)
	}
	return string(data)
}
