// Package streaming defines the JSON messages the watcher publishes.
package streaming

import (
	"encoding/json"
	"errors"
)

type MessageType string

const (
	MessageTypeTransfer   MessageType = "transfer"
	MessageTypeCheckpoint MessageType = "checkpoint"
)

// Message is either one decoded Transfer event or a checkpoint marking that
// every transfer of Token in [FromBlock, ToBlock] has been published.
type Message struct {
	Type            MessageType `json:"type"`
	ChainID         uint64      `json:"chain_id"`
	Token           string      `json:"token"`
	TraceID         string      `json:"trace_id,omitempty"`
	BlockNumber     uint64      `json:"block_number,omitempty"`
	BlockHash       string      `json:"block_hash,omitempty"`
	TxHash          string      `json:"tx_hash,omitempty"`
	LogIndex        uint64      `json:"log_index,omitempty"`
	From            string      `json:"from,omitempty"`
	To              string      `json:"to,omitempty"`
	EncryptedAmount string      `json:"encrypted_amount,omitempty"`
	Removed         bool        `json:"removed,omitempty"`
	FromBlock       uint64      `json:"from_block,omitempty"`
	ToBlock         uint64      `json:"to_block,omitempty"`
}

func Encode(msg Message) ([]byte, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if err := validate(msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func validate(msg Message) error {
	switch msg.Type {
	case MessageTypeTransfer:
		if msg.TxHash == "" {
			return errors.New("tx_hash is required")
		}
	case MessageTypeCheckpoint:
		if msg.FromBlock > msg.ToBlock {
			return errors.New("from_block is after to_block")
		}
	case "":
		return errors.New("message type is required")
	default:
		return errors.New("unknown message type " + string(msg.Type))
	}
	if msg.ChainID == 0 {
		return errors.New("chain_id is required")
	}
	if msg.Token == "" {
		return errors.New("token is required")
	}
	return nil
}
