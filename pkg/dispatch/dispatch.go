package dispatch

import (
	"errors"
	"fmt"

	"github.com/integrid/integrid/pkg/protocol"
	"github.com/integrid/integrid/pkg/types"
)

var (
	// ErrUnknownVerb means a message arrived for a verb this participant
	// never registered. Callers log it and drop the message; the loop
	// continues.
	ErrUnknownVerb = errors.New("no handler registered for verb")

	// ErrDuplicateVerb means a verb was registered twice, which is a
	// programming error caught at startup.
	ErrDuplicateVerb = errors.New("verb already registered")
)

// Handler processes one decoded message from the peer identified by caller.
// The returned message, if non-nil, is sent back as the reply; a nil return
// means no reply is sent. For worker-side registries the caller is always
// empty, since worker-bound datagrams carry no identity.
type Handler func(caller types.WorkerID, msg protocol.Message) *protocol.Message

// Registry maps verbs to handlers. Each participant builds one registry at
// startup by registering a handler per verb it understands; the table is
// read-only afterwards, so dispatch needs no locking.
type Registry struct {
	handlers map[protocol.Verb]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[protocol.Verb]Handler)}
}

// Register binds a handler to a verb. The verb must be part of the protocol
// and not yet bound.
func (r *Registry) Register(verb protocol.Verb, h Handler) error {
	if _, ok := protocol.Schema(verb); !ok {
		return fmt.Errorf("register %s: verb is not part of the protocol", verb)
	}
	if _, exists := r.handlers[verb]; exists {
		return fmt.Errorf("register %s: %w", verb, ErrDuplicateVerb)
	}
	r.handlers[verb] = h
	return nil
}

// MustRegister is Register for startup tables, panicking on misuse.
func (r *Registry) MustRegister(verb protocol.Verb, h Handler) {
	if err := r.Register(verb, h); err != nil {
		panic(err)
	}
}

// Dispatch routes a decoded message to its handler and returns the optional
// reply. An unregistered verb returns ErrUnknownVerb.
func (r *Registry) Dispatch(caller types.WorkerID, msg protocol.Message) (*protocol.Message, error) {
	h, ok := r.handlers[msg.Verb]
	if !ok {
		return nil, fmt.Errorf("dispatch %s: %w", msg.Verb, ErrUnknownVerb)
	}
	return h(caller, msg), nil
}
