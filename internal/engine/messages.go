package engine

// Kind discriminates backend protocol messages.
type Kind string

// Inbound message kinds.
const (
	KindInit    Kind = "init"
	KindConvert Kind = "convert"
)

// Outbound message kinds.
const (
	KindInitComplete Kind = "init_complete"
	KindInitError    Kind = "init_error"
	KindProgress     Kind = "progress"
	KindComplete     Kind = "complete"
	KindError        Kind = "error"
)

// Request is an inbound backend message: init carries no payload, convert
// carries the item ID and the source handle (a file path; the engine reads the
// bytes itself, the core never copies them).
type Request struct {
	Kind         Kind
	ID           string
	SourceHandle string
}

// Message is an outbound backend message. For every convert accepted after a
// successful init, exactly one terminal message (complete or error) carries
// the same ID, unless the engine is torn down first — teardown suppresses
// further messages.
type Message struct {
	Kind    Kind
	ID      string
	Success bool
	Reason  string
	Payload []byte
}

// Terminal reports whether the message settles a conversion.
func (m Message) Terminal() bool {
	return m.Kind == KindComplete || m.Kind == KindError
}
