package wal

// ============================================================================
// State Callback Contract
// Purpose: Model the caller-supplied, generic State capability a Batch
// snapshots at flush time and a caller resumes from at Load time
// ============================================================================

// State is the generic, caller-supplied capability the journal carries
// alongside its entries. A Batch snapshots State at flush time; on Load the
// most recent snapshot is decoded and becomes the state of the new active
// journal. The journal never inspects the encoded bytes itself.
type State interface {
	// OnAddEntry is called once per entry, in order, before the entry is
	// appended to the in-memory batch. Returning an error aborts the add.
	OnAddEntry(entry *Entry) error

	// Clone returns an independent copy; rotation hands a clone to the
	// next journal.
	Clone() State

	// MarshalState encodes the state for storage inside a Batch record.
	MarshalState() ([]byte, error)
}

// DecodeStateFunc decodes bytes produced by State.MarshalState back into a
// State value. Callers pass one to Load since Go has no way to
// recover a concrete type from an interface value alone.
type DecodeStateFunc func([]byte) (State, error)

// NoState is the zero-value State for callers with no resumption data to
// carry: OnAddEntry is a no-op and the encoded form is always empty.
type NoState struct{}

func (NoState) OnAddEntry(*Entry) error { return nil }

func (NoState) Clone() State { return NoState{} }

func (NoState) MarshalState() ([]byte, error) { return nil, nil }

// DecodeNoState is the DecodeStateFunc for NoState.
func DecodeNoState([]byte) (State, error) { return NoState{}, nil }
