package domain

// Block carries the header fields needed to timestamp logs.
type Block struct {
	Number    uint64
	Hash      string
	Timestamp uint64
}
