// Package eventlog implements the bounded append-only signed-sequence log
// (C7): the two wire event kinds, a fixed-capacity ring buffer recording
// completed sequences, and the list/query surface consumed by callers that
// cannot observe the synchronous response of ft_on_transfer (§9).
package eventlog

import "sync"

// TransactionSequenceCreated is emitted when a new pending sequence is
// created, whether single-leg or (paymaster leg + user leg).
type TransactionSequenceCreated struct {
	ID              uint64      `json:"id"`
	ForeignChainID  uint64      `json:"foreign_chain_id"`
	PendingSequence interface{} `json:"pending_transaction_sequence"`
}

// TransactionSequenceSigned is emitted once every leg of a sequence has been
// signed, immediately before the sequence is dropped.
type TransactionSequenceSigned struct {
	ID                 uint64   `json:"id"`
	ForeignChainID     uint64   `json:"foreign_chain_id"`
	CreatedByAccountID string   `json:"created_by_account_id"`
	SignedTransactions []string `json:"signed_transactions"`
}

// entry pairs a signed event with the block height it was recorded at.
type entry struct {
	BlockHeight uint64
	Event       TransactionSequenceSigned
}

// Log is a bounded, append-only ring of signed-sequence events. Once full,
// the oldest entry is evicted to make room for the newest.
type Log struct {
	mu       sync.Mutex
	capacity int
	entries  []entry
	start    int // index of the oldest live entry within entries, once full
	full     bool
}

// NewLog creates a Log with room for capacity entries.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = 1
	}
	return &Log{capacity: capacity, entries: make([]entry, 0, capacity)}
}

// Append records a newly signed sequence at blockHeight.
func (l *Log) Append(blockHeight uint64, ev TransactionSequenceSigned) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := entry{BlockHeight: blockHeight, Event: ev}
	if len(l.entries) < l.capacity {
		l.entries = append(l.entries, e)
		return
	}
	l.entries[l.start] = e
	l.start = (l.start + 1) % l.capacity
	l.full = true
}

// ordered returns the log's live entries in insertion (block height)
// order. Caller must hold l.mu.
func (l *Log) ordered() []entry {
	if !l.full {
		out := make([]entry, len(l.entries))
		copy(out, l.entries)
		return out
	}
	out := make([]entry, 0, l.capacity)
	out = append(out, l.entries[l.start:]...)
	out = append(out, l.entries[:l.start]...)
	return out
}

// ListAfter returns events recorded at or after afterBlockHeight, honoring
// an optional offset/limit (limit of 0 means unbounded).
func (l *Log) ListAfter(afterBlockHeight uint64, offset, limit int) []TransactionSequenceSigned {
	l.mu.Lock()
	defer l.mu.Unlock()

	var matched []TransactionSequenceSigned
	for _, e := range l.ordered() {
		if e.BlockHeight >= afterBlockHeight {
			matched = append(matched, e.Event)
		}
	}
	return paginate(matched, offset, limit)
}

func paginate(items []TransactionSequenceSigned, offset, limit int) []TransactionSequenceSigned {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	out := make([]TransactionSequenceSigned, len(items))
	copy(out, items)
	return out
}
