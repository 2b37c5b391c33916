// Package contracts encodes and decodes calls and events of the encrypted
// token and its factory.
package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"encwallet/internal/domain"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Ciphertext mirrors the on-chain `struct Ciphertext { bytes value; }`.
type Ciphertext struct {
	Value []byte
}

// PublicKey mirrors the on-chain `struct PublicKey { bytes n; bytes g; }`.
type PublicKey struct {
	N []byte
	G []byte
}

// Transfer is a decoded Transfer event.
type Transfer struct {
	From  common.Address
	To    common.Address
	Value Ciphertext
}

var (
	TokenABI   = mustParse(tokenABIJSON)
	FactoryABI = mustParse(factoryABIJSON)

	// TransferTopic is keccak256("Transfer(address,address,(bytes))").
	TransferTopic = TokenABI.Events["Transfer"].ID
)

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse contract abi: %v", err))
	}
	return parsed
}

// AddressTopic left-pads an address into a 32-byte topic.
func AddressTopic(address common.Address) string {
	return common.BytesToHash(address.Bytes()).Hex()
}

// CiphertextFromHex converts a hex ciphertext into its on-chain form.
func CiphertextFromHex(hex string) (Ciphertext, error) {
	clean := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(hex), "0x"), "0X")
	if len(clean)%2 == 1 {
		clean = "0" + clean
	}
	raw, err := hexutil.Decode("0x" + clean)
	if err != nil {
		return Ciphertext{}, fmt.Errorf("%w: invalid ciphertext hex: %v", domain.ErrMalformedInput, err)
	}
	return Ciphertext{Value: raw}, nil
}

// Hex renders the ciphertext bytes as 0x-prefixed hex.
func (c Ciphertext) Hex() string {
	return hexutil.Encode(c.Value)
}

// Empty reports whether the ciphertext holds no bytes, which the token
// contract returns for accounts that never held a balance.
func (c Ciphertext) Empty() bool {
	return len(c.Value) == 0
}

// DecodeTransfer decodes a Transfer log. Logs of other events fail with
// ErrReconstruction.
func DecodeTransfer(entry domain.LogEntry) (Transfer, error) {
	event := TokenABI.Events["Transfer"]
	if len(entry.Topics) != 3 {
		return Transfer{}, fmt.Errorf("%w: transfer log %s has %d topics", domain.ErrReconstruction, entry.TxHash, len(entry.Topics))
	}
	if !strings.EqualFold(entry.Topics[0], event.ID.Hex()) {
		return Transfer{}, fmt.Errorf("%w: log %s is not a Transfer event", domain.ErrReconstruction, entry.TxHash)
	}
	data, err := hexutil.Decode(normalizeData(entry.Data))
	if err != nil {
		return Transfer{}, fmt.Errorf("%w: transfer data: %v", domain.ErrReconstruction, err)
	}
	values, err := TokenABI.Unpack("Transfer", data)
	if err != nil {
		return Transfer{}, fmt.Errorf("%w: unpack transfer: %v", domain.ErrReconstruction, err)
	}
	if len(values) != 1 {
		return Transfer{}, fmt.Errorf("%w: unexpected transfer payload", domain.ErrReconstruction)
	}
	value := *abi.ConvertType(values[0], new(Ciphertext)).(*Ciphertext)
	return Transfer{
		From:  common.HexToAddress(entry.Topics[1]),
		To:    common.HexToAddress(entry.Topics[2]),
		Value: value,
	}, nil
}

// EncodeTransferLog builds the data and topics of a Transfer log.
func EncodeTransferLog(from, to common.Address, value Ciphertext) (string, []string, error) {
	event := TokenABI.Events["Transfer"]
	data, err := event.Inputs.NonIndexed().Pack(value)
	if err != nil {
		return "", nil, err
	}
	return hexutil.Encode(data), []string{event.ID.Hex(), AddressTopic(from), AddressTopic(to)}, nil
}

func normalizeData(data string) string {
	if data == "" || data == "0x" {
		return "0x"
	}
	if !strings.HasPrefix(data, "0x") {
		return "0x" + data
	}
	return data
}

func PackBalanceOf(account common.Address) ([]byte, error) {
	return TokenABI.Pack("balanceOf", account)
}

func UnpackBalanceOf(data []byte) (Ciphertext, error) {
	raw, err := unpackOne[[]byte](TokenABI, "balanceOf", data)
	if err != nil {
		return Ciphertext{}, err
	}
	return Ciphertext{Value: raw}, nil
}

func PackTransfer(recipient common.Address, amount Ciphertext) ([]byte, error) {
	return TokenABI.Pack("transfer", recipient, amount)
}

func PackName() ([]byte, error)     { return TokenABI.Pack("name") }
func PackSymbol() ([]byte, error)   { return TokenABI.Pack("symbol") }
func PackDecimals() ([]byte, error) { return TokenABI.Pack("decimals") }

func UnpackName(data []byte) (string, error) {
	return unpackOne[string](TokenABI, "name", data)
}

func UnpackSymbol(data []byte) (string, error) {
	return unpackOne[string](TokenABI, "symbol", data)
}

func UnpackDecimals(data []byte) (uint8, error) {
	return unpackOne[uint8](TokenABI, "decimals", data)
}

func PackTokensCount() ([]byte, error) {
	return FactoryABI.Pack("getTokensCount")
}

func UnpackTokensCount(data []byte) (*big.Int, error) {
	return unpackOne[*big.Int](FactoryABI, "getTokensCount", data)
}

func PackGetToken(index uint64) ([]byte, error) {
	return FactoryABI.Pack("getToken", new(big.Int).SetUint64(index))
}

func UnpackGetToken(data []byte) (common.Address, error) {
	return unpackOne[common.Address](FactoryABI, "getToken", data)
}

func PackIsToken(token common.Address) ([]byte, error) {
	return FactoryABI.Pack("isDiscreteERC20Token", token)
}

func UnpackIsToken(data []byte) (bool, error) {
	return unpackOne[bool](FactoryABI, "isDiscreteERC20Token", data)
}

// PackCreateToken encodes createDiscreteERC20.
func PackCreateToken(name, symbol string, decimals uint8, initialSupply Ciphertext, paillierContract common.Address, key PublicKey) ([]byte, error) {
	return FactoryABI.Pack("createDiscreteERC20", name, symbol, decimals, initialSupply, paillierContract, key)
}

// PackOutputs encodes method return values, used to serve eth_call fakes.
func PackOutputs(contract abi.ABI, method string, values ...any) ([]byte, error) {
	m, ok := contract.Methods[method]
	if !ok {
		return nil, fmt.Errorf("unknown method %s", method)
	}
	return m.Outputs.Pack(values...)
}

func unpackOne[T any](contract abi.ABI, method string, data []byte) (T, error) {
	var zero T
	values, err := contract.Unpack(method, data)
	if err != nil {
		return zero, fmt.Errorf("%w: unpack %s: %v", domain.ErrReconstruction, method, err)
	}
	if len(values) != 1 {
		return zero, fmt.Errorf("%w: unpack %s: got %d values", domain.ErrReconstruction, method, len(values))
	}
	value, ok := values[0].(T)
	if !ok {
		return zero, fmt.Errorf("%w: unpack %s: unexpected type %T", domain.ErrReconstruction, method, values[0])
	}
	return value, nil
}
