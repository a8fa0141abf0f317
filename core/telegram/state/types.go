package state

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the chat.
	StateIdle State = "idle"
)

// Session is implemented by payloads that carry their own FSM step.
type Session interface {
	Stage() State
}
