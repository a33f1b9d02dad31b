package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrid/integrid/pkg/types"
)

// TestEncodeDecodeRoundTrip tests that every message shape survives the wire
func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{name: "get chunk", msg: NewGetChunk()},
		{name: "no job", msg: NewNoJob()},
		{name: "acknowledge", msg: NewAcknowledge()},
		{name: "watchdog", msg: NewResetWatchdog()},
		{name: "math error", msg: NewMathError()},
		{name: "result part", msg: NewResultPart(0.5612)},
		{
			name: "task",
			msg: NewTask(types.Task{
				Formula: "2 * x + 1 / sqrt(x + 1/16)",
				Method:  types.MethodSimpson,
				Lower:   0.0,
				Upper:   0.4,
			}),
		},
		{
			name: "task with quotes in formula",
			msg: NewTask(types.Task{
				Formula: `x + "1"`, // rejected later by the formula parser, but must survive the codec
				Method:  types.MethodTrapezoid,
				Lower:   -1.5,
				Upper:   2.25,
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.msg.Verb, decoded.Verb)
			assert.Equal(t, tt.msg.Args, decoded.Args)
		})
	}
}

// TestEncodePayloadShape pins the exact wire bytes for the fixed verbs
func TestEncodePayloadShape(t *testing.T) {
	data, err := Encode(NewGetChunk())
	require.NoError(t, err)
	assert.Equal(t, "GET()", string(data))

	data, err = Encode(NewResultPart(1.0))
	require.NoError(t, err)
	assert.Equal(t, "GOT(1)", string(data))

	data, err = Encode(NewTask(types.Task{
		Formula: "2*x+1",
		Method:  types.MethodSimpson,
		Lower:   0,
		Upper:   0.4,
	}))
	require.NoError(t, err)
	assert.Equal(t, `TAS("2*x+1","SIM",0,0.4)`, string(data))
}

// TestEnvelopeRoundTrip tests the coordinator-bound identity prefix
func TestEnvelopeRoundTrip(t *testing.T) {
	id := types.WorkerID("worker-a7f3c9d2")
	data, err := EncodeEnvelope(id, NewResultPart(0.25))
	require.NoError(t, err)
	assert.Equal(t, `worker-a7f3c9d2|GOT(0.25)`, string(data))

	gotID, msg, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, VerbResultPart, msg.Verb)

	value, err := ResultFromMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, 0.25, value)
}

// TestEncodeEnvelopeRejectsBadIdentity tests identity constraints
func TestEncodeEnvelopeRejectsBadIdentity(t *testing.T) {
	_, err := EncodeEnvelope("", NewGetChunk())
	assert.Error(t, err)

	_, err = EncodeEnvelope("bad|identity", NewGetChunk())
	assert.Error(t, err)
}

// TestDecodeRejectsMalformedPayloads tests the protocol-fault paths: every
// malformed datagram must fail with a DecodeError, never panic
func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "empty", payload: ""},
		{name: "no parens", payload: "GET"},
		{name: "unterminated parens", payload: "GET("},
		{name: "unknown verb", payload: "XYZ()"},
		{name: "arity too low", payload: "GOT()"},
		{name: "arity too high", payload: "GOT(1,2)"},
		{name: "wrong arg type", payload: `GOT("one")`},
		{name: "expression instead of literal", payload: "GOT(1+2)"},
		{name: "function call argument", payload: "GOT(exec(1))"},
		{name: "identifier argument", payload: "GOT(x)"},
		{name: "unterminated string", payload: `TAS("abc`},
		{name: "trailing comma", payload: "GOT(1,)"},
		{name: "trailing garbage", payload: "GOT(1)x"},
		{name: "task arity", payload: `TAS("f","SIM",1)`},
		{name: "task type mismatch", payload: `TAS("f","SIM","a","b")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			require.Error(t, err)
			var decodeErr *DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

// TestDecodeEnvelopeRejectsMissingIdentity tests the coordinator-bound frame rules
func TestDecodeEnvelopeRejectsMissingIdentity(t *testing.T) {
	for _, payload := range []string{"GET()", "|GET()"} {
		_, _, err := DecodeEnvelope([]byte(payload))
		assert.Error(t, err, "payload %q", payload)
	}
}

// TestDecodeStringEscapes tests quoted-string handling inside argument lists
func TestDecodeStringEscapes(t *testing.T) {
	msg, err := Decode([]byte(`TAS("a,b","SIM",0,1)`))
	require.NoError(t, err)
	assert.Equal(t, "a,b", msg.Args[0].Str)

	msg, err = Decode([]byte(`TAS("a\"b","SIM",0,1)`))
	require.NoError(t, err)
	assert.Equal(t, `a"b`, msg.Args[0].Str)
}

// TestEncodeRejectsOversizedPayload tests the datagram size limit
func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := Encode(NewTask(types.Task{
		Formula: strings.Repeat("x+", 600) + "x",
		Method:  types.MethodSimpson,
		Lower:   0,
		Upper:   1,
	}))
	require.Error(t, err)
	var encodeErr *EncodeError
	assert.ErrorAs(t, err, &encodeErr)
}

// TestTaskFromMessageRejectsUnknownMethod tests method validation at decode
func TestTaskFromMessageRejectsUnknownMethod(t *testing.T) {
	msg, err := Decode([]byte(`TAS("x","BOGUS",0,1)`))
	require.NoError(t, err) // schema-valid: the method is just a string on the wire

	_, err = TaskFromMessage(msg)
	assert.Error(t, err)
}
