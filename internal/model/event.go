package model

import "github.com/edgeless-project/edgeless/internal/ids"

// EventKind discriminates the Data union of a dataplane Event (spec.md §3).
type EventKind int

const (
	EventCast EventKind = iota
	EventCall
	EventCallRet
	EventCallNoRet
	EventErr
)

// Event is a dataplane event, routed by source/target InstanceId and
// correlated across call/reply via StreamId.
type Event struct {
	Source   ids.InstanceId
	Target   ids.InstanceId
	StreamId uint64
	Kind     EventKind
	Data     []byte
}

// LinkProcessingResult is what a Link's handle_cast returns (spec.md §4.1).
type LinkProcessingResult int

const (
	LinkFinal LinkProcessingResult = iota
	LinkPassed
	LinkIgnored
	LinkError
)

func (r LinkProcessingResult) String() string {
	switch r {
	case LinkFinal:
		return "Final"
	case LinkPassed:
		return "Passed"
	case LinkIgnored:
		return "Ignored"
	case LinkError:
		return "Error"
	default:
		return "Unknown"
	}
}

// TelemetryEventType enumerates the event taxonomy of §6.
type TelemetryEventType string

const (
	FunctionInstantiate         TelemetryEventType = "FunctionInstantiate"
	FunctionInit                TelemetryEventType = "FunctionInit"
	FunctionInvocationCompleted TelemetryEventType = "FunctionInvocationCompleted"
	FunctionStop                TelemetryEventType = "FunctionStop"
	FunctionExit                TelemetryEventType = "FunctionExit"
	FunctionLogEntry            TelemetryEventType = "FunctionLogEntry"
)

// ExitStatus is the status carried by a FunctionExit telemetry event.
type ExitStatus string

const (
	ExitOk            ExitStatus = "Ok"
	ExitInternalError ExitStatus = "InternalError"
	ExitCodeError     ExitStatus = "CodeError"
)

// TelemetryEvent is one entry on the telemetry fan-out bus (§2, §6).
type TelemetryEvent struct {
	Type       TelemetryEventType
	InstanceId ids.InstanceId
	// Detail carries type-specific fields: for FunctionExit, "status";
	// for FunctionLogEntry, "level"/"target"/"msg"; for the others, timing
	// and identifying fields the emitting component chooses to attach.
	Detail map[string]any
}

// TelemetryHandlerResult is the verdict a chain link in the fan-out returns.
type TelemetryHandlerResult int

const (
	TelemetryProcessed TelemetryHandlerResult = iota
	TelemetryFinal
	TelemetryPassed
)
