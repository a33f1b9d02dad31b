package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/integrid/integrid/pkg/types"
)

// BufferSize is the maximum datagram payload either participant sends or
// accepts. Larger datagrams are truncated by the receive buffer and will fail
// to decode.
const BufferSize = 1024

// IdentitySeparator splits the worker identity from the verb payload in
// coordinator-bound datagrams. It is not usable inside identities.
const IdentitySeparator = "|"

// Verb is the three-letter command name leading every payload.
type Verb string

const (
	VerbGetChunk      Verb = "GET" // worker asks for work, no args
	VerbTask          Verb = "TAS" // coordinator assigns work: formula, method, lower, upper
	VerbResultPart    Verb = "GOT" // worker submits a partial result: value
	VerbAcknowledge   Verb = "ACK" // coordinator confirms a result, no args
	VerbResetWatchdog Verb = "DOG" // worker signals liveness, no args
	VerbNoJob         Verb = "NOJ" // coordinator has no free chunk, no args
	VerbMathError     Verb = "ERR" // worker reports a domain fault, no args
)

// ArgKind is the wire type of one argument position.
type ArgKind int

const (
	KindFloat ArgKind = iota
	KindString
)

// Arg is a single decoded argument: a float or a string literal.
type Arg struct {
	Kind ArgKind
	Str  string
	Num  float64
}

// Float builds a numeric argument.
func Float(v float64) Arg { return Arg{Kind: KindFloat, Num: v} }

// String builds a string argument.
func String(s string) Arg { return Arg{Kind: KindString, Str: s} }

// Message is one decoded command: a verb plus its ordered argument list.
type Message struct {
	Verb Verb
	Args []Arg
}

// schemas fixes the argument shape of every verb. Decode rejects any payload
// whose argument list does not match its verb's schema, so handlers never see
// wrong arity or wrong types.
var schemas = map[Verb][]ArgKind{
	VerbGetChunk:      {},
	VerbTask:          {KindString, KindString, KindFloat, KindFloat},
	VerbResultPart:    {KindFloat},
	VerbAcknowledge:   {},
	VerbResetWatchdog: {},
	VerbNoJob:         {},
	VerbMathError:     {},
}

// Schema returns the argument kinds for a verb, and whether the verb is known.
func Schema(v Verb) ([]ArgKind, bool) {
	s, ok := schemas[v]
	return s, ok
}

// Encode renders a message as a worker-bound payload: VERB(arg1,arg2,...).
// Strings are double-quoted, floats use the shortest decimal representation.
func Encode(msg Message) ([]byte, error) {
	if _, ok := schemas[msg.Verb]; !ok {
		return nil, &EncodeError{Verb: msg.Verb, Reason: "unknown verb"}
	}
	if err := checkSchema(msg.Verb, msg.Args); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(string(msg.Verb))
	b.WriteByte('(')
	for i, arg := range msg.Args {
		if i > 0 {
			b.WriteByte(',')
		}
		switch arg.Kind {
		case KindFloat:
			b.WriteString(strconv.FormatFloat(arg.Num, 'g', -1, 64))
		case KindString:
			b.WriteString(strconv.Quote(arg.Str))
		}
	}
	b.WriteByte(')')

	if b.Len() > BufferSize {
		return nil, &EncodeError{Verb: msg.Verb, Reason: "payload exceeds buffer size"}
	}
	return []byte(b.String()), nil
}

// EncodeEnvelope renders a coordinator-bound payload: identity|VERB(args).
func EncodeEnvelope(id types.WorkerID, msg Message) ([]byte, error) {
	if id == "" {
		return nil, &EncodeError{Verb: msg.Verb, Reason: "empty worker identity"}
	}
	if strings.Contains(string(id), IdentitySeparator) {
		return nil, &EncodeError{Verb: msg.Verb, Reason: "identity contains separator"}
	}
	payload, err := Encode(msg)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(id)+1+len(payload))
	out = append(out, id...)
	out = append(out, IdentitySeparator...)
	out = append(out, payload...)
	if len(out) > BufferSize {
		return nil, &EncodeError{Verb: msg.Verb, Reason: "payload exceeds buffer size"}
	}
	return out, nil
}

// Decode parses a worker-bound payload. The argument list is parsed as a
// sequence of data literals only; nothing is ever evaluated.
func Decode(data []byte) (Message, error) {
	return decodePayload(string(data))
}

// DecodeEnvelope parses a coordinator-bound payload, splitting off the worker
// identity prefix.
func DecodeEnvelope(data []byte) (types.WorkerID, Message, error) {
	s := string(data)
	sep := strings.Index(s, IdentitySeparator)
	if sep <= 0 {
		return "", Message{}, &DecodeError{Payload: s, Reason: "missing identity prefix"}
	}
	id := types.WorkerID(s[:sep])
	msg, err := decodePayload(s[sep+1:])
	if err != nil {
		return "", Message{}, err
	}
	return id, msg, nil
}

func decodePayload(s string) (Message, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return Message{}, &DecodeError{Payload: s, Reason: "not of the form VERB(args)"}
	}
	verb := Verb(s[:open])
	if _, ok := schemas[verb]; !ok {
		return Message{}, &DecodeError{Payload: s, Reason: fmt.Sprintf("unknown verb %q", string(verb))}
	}

	args, err := parseArgList(s[open+1 : len(s)-1])
	if err != nil {
		return Message{}, &DecodeError{Payload: s, Reason: err.Error()}
	}
	msg := Message{Verb: verb, Args: args}
	if err := checkSchema(verb, args); err != nil {
		return Message{}, &DecodeError{Payload: s, Reason: err.Error()}
	}
	return msg, nil
}

// parseArgList scans a comma-separated list of literals. Accepted literals
// are double-quoted strings (Go quoting rules) and decimal numbers. Anything
// else, including nested parentheses or identifiers, is a parse error.
func parseArgList(s string) ([]Arg, error) {
	var args []Arg
	if s == "" {
		return args, nil
	}
	i := 0
	for {
		if i >= len(s) {
			return nil, fmt.Errorf("trailing comma in argument list")
		}
		arg, next, err := parseLiteral(s, i)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if next == len(s) {
			return args, nil
		}
		if s[next] != ',' {
			return nil, fmt.Errorf("unexpected character %q at position %d", s[next], next)
		}
		i = next + 1
	}
}

func parseLiteral(s string, i int) (Arg, int, error) {
	if s[i] == '"' {
		end := i + 1
		for end < len(s) {
			if s[end] == '\\' {
				end += 2
				continue
			}
			if s[end] == '"' {
				unq, err := strconv.Unquote(s[i : end+1])
				if err != nil {
					return Arg{}, 0, fmt.Errorf("malformed string literal at position %d", i)
				}
				return String(unq), end + 1, nil
			}
			end++
		}
		return Arg{}, 0, fmt.Errorf("unterminated string literal at position %d", i)
	}

	end := i
	for end < len(s) && s[end] != ',' {
		end++
	}
	num, err := strconv.ParseFloat(s[i:end], 64)
	if err != nil {
		return Arg{}, 0, fmt.Errorf("malformed numeric literal %q", s[i:end])
	}
	return Float(num), end, nil
}

func checkSchema(verb Verb, args []Arg) error {
	want := schemas[verb]
	if len(args) != len(want) {
		return fmt.Errorf("verb %s wants %d args, got %d", verb, len(want), len(args))
	}
	for i, kind := range want {
		if args[i].Kind != kind {
			return fmt.Errorf("verb %s arg %d has wrong type", verb, i)
		}
	}
	return nil
}
