// Package protocol defines the VibeLayer wire messages exchanged between creator
// clients, the orchestrator and status consumers.
//
// # Overview
//
// Every message shares a common envelope (id, timestamp, type) and carries
// exactly one payload variant. The variant is selected by the type tag:
//
//	effect:trigger   - a request to render an effect (EffectTrigger)
//	system:status    - service health, performance and lifecycle reports (SystemStatus)
//	creator:connect  - a creator client joining (CreatorConnection)
//	ai:suggestion    - an effect proposed by an AI agent (AISuggestion)
//
// The set of variants is closed. Payload is a sealed interface, so a type
// switch over the four payload types is exhaustive.
//
// # Decoding
//
// Decode validates the type tag first and fails with ErrUnknownMessageType
// when it is absent or unrecognised. It then validates the common fields and
// every field of the selected variant; the first violation produces an
// ErrInvalidPayload naming the offending field path (for example
// "payload.intensity"). Values are never clamped or coerced.
//
// # Encoding
//
// Encode is the inverse of Decode: for every message accepted by Validate,
// Decode(Encode(m)) yields a message equal to m. Numbers inside free-form
// parameter maps travel as float64, matching encoding/json.
//
// # Usage Example
//
//	msg := protocol.NewEffectTrigger("confetti", 0.8, nil, map[string]any{
//		"colors": []any{"#6366f1"},
//		"tone":   "professional launch",
//	})
//
//	raw, err := protocol.Encode(msg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	decoded, err := protocol.Decode(raw)
//	var decodeErr *protocol.DecodeError
//	if errors.As(err, &decodeErr) {
//		log.Printf("rejected field %s: %s", decodeErr.Field, decodeErr.Reason)
//	}
package protocol
