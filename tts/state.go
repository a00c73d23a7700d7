package tts

// StateType represents the current state of the speech engine.
type StateType int

const (
	// StateIdle indicates nothing is being spoken.
	StateIdle StateType = iota
	// StateSpeaking indicates an utterance is being spoken.
	StateSpeaking
	// StatePaused indicates the current utterance is paused.
	StatePaused
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Status is a point-in-time copy of the engine state. It is never persisted.
type Status struct {
	State           StateType
	Text            string  // Text of the current utterance, empty when idle
	ArticleProgress float64 // Fraction of the current utterance spoken, in [0,1]
	UtteranceIndex  int     // Index of the current utterance within its run
	TotalUtterances int     // Number of utterances in the run
	Volume          float64
	Rate            float64
}

// IsSpeaking reports whether an utterance is audibly in progress.
func (s Status) IsSpeaking() bool {
	return s.State == StateSpeaking
}

// IsActive returns true if an utterance is speaking or paused.
func (s Status) IsActive() bool {
	return s.State == StateSpeaking || s.State == StatePaused
}

// StateMachine manages state transitions for the speech engine.
// It is not safe for concurrent use; the engine guards it with its own lock.
type StateMachine struct {
	current     StateType
	transitions map[StateType][]StateType
	onEnter     map[StateType]func()
	onExit      map[StateType]func()
}

// NewStateMachine creates a new state machine with valid transitions.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[StateType][]StateType{
			StateIdle:     {StateSpeaking},
			StateSpeaking: {StatePaused, StateIdle},
			StatePaused:   {StateSpeaking, StateIdle},
		},
		onEnter: make(map[StateType]func()),
		onExit:  make(map[StateType]func()),
	}
}

// CanTransition reports whether moving to the given state is allowed.
func (sm *StateMachine) CanTransition(to StateType) bool {
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			return true
		}
	}
	return false
}

// Transition attempts to transition to the specified state.
func (sm *StateMachine) Transition(to StateType) bool {
	if !sm.CanTransition(to) {
		return false
	}

	if exitFn, ok := sm.onExit[sm.current]; ok && exitFn != nil {
		exitFn()
	}

	sm.current = to

	if enterFn, ok := sm.onEnter[to]; ok && enterFn != nil {
		enterFn()
	}

	return true
}

// Reset forces the machine back to idle, running the exit and enter hooks.
func (sm *StateMachine) Reset() {
	if sm.current == StateIdle {
		return
	}
	sm.Transition(StateIdle)
}

// Current returns the current state.
func (sm *StateMachine) Current() StateType {
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state StateType, fn func()) {
	sm.onEnter[state] = fn
}

// OnExit registers a callback for exiting a state.
func (sm *StateMachine) OnExit(state StateType, fn func()) {
	sm.onExit[state] = fn
}
