package domain

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusConfirmed TransactionStatus = "confirmed"
	StatusFailed    TransactionStatus = "failed"
)

// Transaction is an encrypted token transfer reconstructed from chain logs.
type Transaction struct {
	Hash            string            `json:"hash"`
	From            string            `json:"from"`
	To              string            `json:"to"`
	EncryptedAmount string            `json:"encryptedAmount"`
	Timestamp       uint64            `json:"timestamp"`
	Status          TransactionStatus `json:"status"`
	BlockNumber     uint64            `json:"blockNumber,omitempty"`
}

// TransactionPage is one page of transaction history. NextCursor is nil on the
// last page.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	NextCursor   *int          `json:"nextCursor,omitempty"`
}
