/*
Package dispatch routes decoded protocol messages to handlers.

Each participant (coordinator or worker) builds a static Registry at startup,
registering exactly one handler per verb it understands. A handler may return
a reply message, which the loop sends back to the peer, or nil for no reply.

The table is explicit and built once, with no scanning or reflection, so
the set of verbs a participant answers is visible in one place in its
constructor. Receiving a verb with no handler is a protocol error surfaced as
ErrUnknownVerb; loops log it, drop the message, and continue.
*/
package dispatch
