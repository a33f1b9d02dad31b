/*
Package protocol implements the datagram wire codec for integrid.

Every datagram is a UTF-8 text payload of the form:

	VERB(arg1,arg2,...)              worker-bound
	identity|VERB(arg1,arg2,...)     coordinator-bound

where VERB is a fixed three-letter command name and the arguments are a
comma-separated list of literals: double-quoted strings or decimal numbers.
The identity prefix is the worker's opaque token; '|' cannot appear inside
identities.

Each verb has a fixed argument schema (ordered kinds, validated at decode),
so a payload with the wrong arity or a wrong-typed argument fails to decode
instead of reaching a handler. The argument parser accepts data literals
only; it is not an expression evaluator, and a payload such as
GOT(1+2) is rejected.

Example payloads:

	GET()
	TAS("2 * x + 1","SIM",0,0.4)
	GOT(0.56)
	a7f3c9d2-...|GET()

Decode failures are reported as *DecodeError; callers log and drop the
datagram and keep their loop running.
*/
package protocol
