package event

// Type identifies the type of domain event
type Type string

const (
	TypeDocumentCreated Type = "document.created"
	TypeStatusChanged   Type = "document.status_changed"
	TypeDocumentBooked  Type = "document.booked"
	TypeDocumentFailed  Type = "document.failed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeDocumentCreated,
		TypeStatusChanged,
		TypeDocumentBooked,
		TypeDocumentFailed:
		return true
	default:
		return false
	}
}
