package domain

// LogEntry is a contract log as returned by eth_getLogs. A pending log has no
// block yet, so BlockNumber is zero and Pending is set.
type LogEntry struct {
	BlockNumber uint64
	Pending     bool
	BlockHash   string
	TxHash      string
	LogIndex    uint64
	Address     string
	Data        string
	Topics      []string
	// Removed marks a log dropped by a reorg.
	Removed bool
}

// Precedes reports whether e was emitted before other in chain order.
func (e LogEntry) Precedes(other LogEntry) bool {
	if e.BlockNumber != other.BlockNumber {
		return e.BlockNumber < other.BlockNumber
	}
	return e.LogIndex < other.LogIndex
}
