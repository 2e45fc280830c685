package recording

import "fmt"

// State is the lifecycle state of a recording session.
type State string

const (
	StateIdle       State = "IDLE"
	StateRequesting State = "REQUESTING"
	StateRecording  State = "RECORDING"
	StatePaused     State = "PAUSED"
	StateStopped    State = "STOPPED"
	StateFailed     State = "FAILED"
)

// Active reports whether the session holds the input device and is
// collecting chunks.
func (s State) Active() bool {
	return s == StateRecording || s == StatePaused
}

// Event drives a state transition.
type Event string

const (
	EventStart       Event = "start"
	EventGrant       Event = "grant"
	EventDeny        Event = "deny"
	EventChunk       Event = "chunk"
	EventPause       Event = "pause"
	EventResume      Event = "resume"
	EventStop        Event = "stop"
	EventDeviceError Event = "device_error"
	EventReset       Event = "reset"
)

type transitionKey struct {
	from  State
	event Event
}

var transitions = map[transitionKey]State{
	{StateIdle, EventStart}:            StateRequesting,
	{StateRequesting, EventGrant}:      StateRecording,
	{StateRequesting, EventDeny}:       StateFailed,
	{StateRecording, EventChunk}:       StateRecording,
	{StatePaused, EventChunk}:          StatePaused,
	{StateRecording, EventPause}:       StatePaused,
	{StatePaused, EventResume}:         StateRecording,
	{StateRecording, EventStop}:        StateStopped,
	{StatePaused, EventStop}:           StateStopped,
	{StateRecording, EventDeviceError}: StateFailed,
	{StatePaused, EventDeviceError}:    StateFailed,
}

// Transition returns the state reached by applying ev in from. Reset is
// accepted in every state; from an active state it aborts the session.
func Transition(from State, ev Event) (State, error) {
	if ev == EventReset {
		return StateIdle, nil
	}
	if to, ok := transitions[transitionKey{from, ev}]; ok {
		return to, nil
	}
	return from, fmt.Errorf("no transition from %s on %s", from, ev)
}
