package domain

// TokenInfo describes an encrypted token deployed through the factory.
type TokenInfo struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// Balance is an account balance on one token, encrypted and, when decrypted,
// rendered for display.
type Balance struct {
	Token      string `json:"token"`
	Account    string `json:"account"`
	Ciphertext string `json:"ciphertext"`
	Raw        string `json:"raw,omitempty"`
	Formatted  string `json:"formatted,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
}

// TxRequest is an unsigned contract call handed to the user's wallet for
// signing.
type TxRequest struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

// DecryptedAmount is a plaintext amount in base units and its display form.
type DecryptedAmount struct {
	Raw       string `json:"raw"`
	Formatted string `json:"formatted"`
}
