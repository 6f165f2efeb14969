package ir

// EventKind names an observable ledger event.
type EventKind string

const (
	EventStreamCreated      EventKind = "stream.created"
	EventStreamWithdrawn    EventKind = "stream.withdrawn"
	EventStreamPaused       EventKind = "stream.paused"
	EventStreamResumed      EventKind = "stream.resumed"
	EventStreamCancelled    EventKind = "stream.cancelled"
	EventDelegateAuthorized EventKind = "delegate.authorized"
	EventDelegateRevoked    EventKind = "delegate.revoked"
)

// Event is one audit record. Fields irrelevant to a kind stay zero.
type Event struct {
	ID   string    `json:"id"`
	Seq  int64     `json:"seq"`
	Kind EventKind `json:"kind"`
	At   Timestamp `json:"at"`

	StreamID StreamID `json:"stream_id,omitempty"`

	// Caller is the identity that invoked the operation.
	Caller Address `json:"caller,omitempty"`
	// Principal is the party a delegate acted for; empty for direct calls.
	Principal Address `json:"principal,omitempty"`

	Sender    Address `json:"sender,omitempty"`
	Recipient Address `json:"recipient,omitempty"`
	Delegate  Address `json:"delegate,omitempty"`
	Token     Address `json:"token,omitempty"`
	Action    Action  `json:"action,omitempty"`

	// Amount is the quantity moved to the recipient (or pulled at creation).
	Amount Amount `json:"amount,omitempty"`
	// Refund is the quantity returned to the sender.
	Refund Amount `json:"refund,omitempty"`

	Start    Timestamp `json:"start,omitempty"`
	Stop     Timestamp `json:"stop,omitempty"`
	Rate     Amount    `json:"rate,omitempty"`
	TimeLeft int64     `json:"time_left,omitempty"`

	// Terminated is set when the operation ended the stream.
	Terminated bool `json:"terminated,omitempty"`
}

// Fields returns the event's non-zero fields, without ID, as a plain map
// suitable for MarshalCanonical. Deterministic for identical events.
func (e Event) Fields() map[string]any {
	m := map[string]any{
		"kind": string(e.Kind),
		"seq":  e.Seq,
		"at":   e.At,
	}
	putUint := func(k string, v uint64) {
		if v != 0 {
			m[k] = v
		}
	}
	putInt := func(k string, v int64) {
		if v != 0 {
			m[k] = v
		}
	}
	putAddr := func(k string, v Address) {
		if v != ZeroAddress {
			m[k] = string(v)
		}
	}

	putUint("stream_id", uint64(e.StreamID))
	putAddr("caller", e.Caller)
	putAddr("principal", e.Principal)
	putAddr("sender", e.Sender)
	putAddr("recipient", e.Recipient)
	putAddr("delegate", e.Delegate)
	putAddr("token", e.Token)
	if e.Action.Valid() {
		m["action"] = e.Action.String()
	}
	putUint("amount", e.Amount)
	putUint("refund", e.Refund)
	putInt("start", e.Start)
	putInt("stop", e.Stop)
	putUint("rate", e.Rate)
	putInt("time_left", e.TimeLeft)
	if e.Terminated {
		m["terminated"] = true
	}
	return m
}
