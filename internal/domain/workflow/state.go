package workflow

// State is a document processing status. The string values are the persisted form.
type State string

const (
	StatePending    State = "PENDING"
	StateProcessing State = "PROCESSING"
	StateExtracted  State = "EXTRACTED"
	StateValidated  State = "VALIDATED"
	StateUploaded   State = "UPLOADED"
	StateBooked     State = "BOOKED"
	StateError      State = "ERROR"
)

// AllStates lists every status in lifecycle order, ERROR last
var AllStates = []State{
	StatePending,
	StateProcessing,
	StateExtracted,
	StateValidated,
	StateUploaded,
	StateBooked,
	StateError,
}

var validStates = func() map[State]bool {
	m := make(map[State]bool, len(AllStates))
	for _, s := range AllStates {
		m[s] = true
	}
	return m
}()

// ERROR is not listed: it only stays terminal until someone retries.
var terminalStates = map[State]bool{
	StateBooked: true,
}

// IsTerminal returns true if no transition may leave the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known document status
func (s State) IsValid() bool {
	return validStates[s]
}
