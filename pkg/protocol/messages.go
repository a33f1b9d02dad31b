package protocol

import (
	"fmt"

	"github.com/integrid/integrid/pkg/types"
)

// Constructors and accessors for the concrete message shapes, so the loop
// packages never index Args positionally.

// NewGetChunk builds a work request.
func NewGetChunk() Message { return Message{Verb: VerbGetChunk} }

// NewTask builds a task assignment from the run parameters and chunk bounds.
func NewTask(task types.Task) Message {
	return Message{
		Verb: VerbTask,
		Args: []Arg{
			String(task.Formula),
			String(string(task.Method)),
			Float(task.Lower),
			Float(task.Upper),
		},
	}
}

// NewResultPart builds a partial-result submission.
func NewResultPart(value float64) Message {
	return Message{Verb: VerbResultPart, Args: []Arg{Float(value)}}
}

// NewAcknowledge builds a result acknowledgement.
func NewAcknowledge() Message { return Message{Verb: VerbAcknowledge} }

// NewResetWatchdog builds a liveness ping.
func NewResetWatchdog() Message { return Message{Verb: VerbResetWatchdog} }

// NewNoJob builds a no-work-available reply.
func NewNoJob() Message { return Message{Verb: VerbNoJob} }

// NewMathError builds a domain-fault report.
func NewMathError() Message { return Message{Verb: VerbMathError} }

// TaskFromMessage extracts the task from a TAS message.
func TaskFromMessage(msg Message) (types.Task, error) {
	if msg.Verb != VerbTask {
		return types.Task{}, fmt.Errorf("message is %s, not %s", msg.Verb, VerbTask)
	}
	task := types.Task{
		Formula: msg.Args[0].Str,
		Method:  types.Method(msg.Args[1].Str),
		Lower:   msg.Args[2].Num,
		Upper:   msg.Args[3].Num,
	}
	if !task.Method.Valid() {
		return types.Task{}, fmt.Errorf("unknown integration method %q", msg.Args[1].Str)
	}
	return task, nil
}

// ResultFromMessage extracts the value from a GOT message.
func ResultFromMessage(msg Message) (float64, error) {
	if msg.Verb != VerbResultPart {
		return 0, fmt.Errorf("message is %s, not %s", msg.Verb, VerbResultPart)
	}
	return msg.Args[0].Num, nil
}
