package application

import (
	"fmt"
	"strings"

	"encwallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

type HistoryFilter string

const (
	FilterAll      HistoryFilter = "all"
	FilterSent     HistoryFilter = "sent"
	FilterReceived HistoryFilter = "received"
)

func ParseHistoryFilter(raw string) (HistoryFilter, error) {
	switch HistoryFilter(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterSent:
		return FilterSent, nil
	case FilterReceived:
		return FilterReceived, nil
	default:
		return "", fmt.Errorf("%w: unknown filter %q", domain.ErrMalformedInput, raw)
	}
}

// HistoryQuery selects one page of an account's transfers on one token.
type HistoryQuery struct {
	Account  common.Address
	Token    common.Address
	Page     int
	PageSize int
	Filter   HistoryFilter
	Search   string
}

// ParseAddress validates a 0x-prefixed hex address.
func ParseAddress(field, raw string) (common.Address, error) {
	value := strings.TrimSpace(raw)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: invalid %s address %q", domain.ErrMalformedInput, field, raw)
	}
	return common.HexToAddress(value), nil
}

// LogFilter mirrors the eth_getLogs filter object. A nil entry in Topics is a
// wildcard for that position; a nil ToBlock means "latest".
type LogFilter struct {
	Address   common.Address
	Topics    []*common.Hash
	FromBlock uint64
	ToBlock   *uint64
}
