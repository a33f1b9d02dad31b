package protocol

import "fmt"

// DecodeError reports a datagram that could not be parsed into a message.
// Receivers drop the datagram and keep looping; decode failures are never
// fatal to either participant.
type DecodeError struct {
	Payload string
	Reason  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %s", e.Payload, e.Reason)
}

// EncodeError reports a message that violates its verb's schema or the
// datagram size limit. Encoding only fails on programming errors or oversized
// formulas, both caught before anything hits the wire.
type EncodeError struct {
	Verb   Verb
	Reason string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %s", e.Verb, e.Reason)
}
