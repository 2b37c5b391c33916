package application

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"encwallet/internal/contracts"
	"encwallet/internal/domain"
	"encwallet/internal/paillier"
	"encwallet/internal/units"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// MaxDecimals is the largest decimals value for which 10^decimals still fits
// in a uint256.
const MaxDecimals = 77

type Encryptor interface {
	Encrypt(value *big.Int) (string, error)
	PublicKey() *paillier.PublicKey
}

type Decryptor interface {
	Decrypt(ctx context.Context, ciphertext string) (*big.Int, error)
}

type TokenReader interface {
	Get(ctx context.Context, address common.Address) (domain.TokenInfo, error)
}

type BalanceService struct {
	caller    ContractCaller
	tokens    TokenReader
	decryptor Decryptor
}

func NewBalanceService(caller ContractCaller, tokens TokenReader, decryptor Decryptor) (*BalanceService, error) {
	if caller == nil || tokens == nil || decryptor == nil {
		return nil, fmt.Errorf("%w: balance service dependencies must not be nil", domain.ErrConfiguration)
	}
	return &BalanceService{caller: caller, tokens: tokens, decryptor: decryptor}, nil
}

// Encrypted returns the raw balanceOf ciphertext. An empty result means the
// account never held the token.
func (s *BalanceService) Encrypted(ctx context.Context, token, account common.Address) (contracts.Ciphertext, error) {
	data, err := contracts.PackBalanceOf(account)
	if err != nil {
		return contracts.Ciphertext{}, err
	}
	out, err := s.caller.Call(ctx, token, data)
	if err != nil {
		return contracts.Ciphertext{}, fmt.Errorf("balanceOf %s: %w", account.Hex(), err)
	}
	return contracts.UnpackBalanceOf(out)
}

func (s *BalanceService) Decrypted(ctx context.Context, token, account common.Address) (domain.Balance, error) {
	info, err := s.tokens.Get(ctx, token)
	if err != nil {
		return domain.Balance{}, err
	}
	ciphertext, err := s.Encrypted(ctx, token, account)
	if err != nil {
		return domain.Balance{}, err
	}
	balance := domain.Balance{
		Token:      token.Hex(),
		Account:    account.Hex(),
		Ciphertext: ciphertext.Hex(),
		Symbol:     info.Symbol,
	}
	if ciphertext.Empty() {
		balance.Raw = "0"
		balance.Formatted = "0"
		return balance, nil
	}
	amount, err := s.Decrypt(ctx, ciphertext.Hex(), info.Decimals)
	if err != nil {
		slog.Error("decrypt balance failed", "token", token.Hex(), "account", account.Hex(), "err", err)
		return domain.Balance{}, err
	}
	balance.Raw = amount.Raw
	balance.Formatted = amount.Formatted
	return balance, nil
}

// Decrypt decrypts an arbitrary ciphertext and formats it with decimals.
func (s *BalanceService) Decrypt(ctx context.Context, ciphertext string, decimals uint8) (domain.DecryptedAmount, error) {
	ctx, span := otel.Tracer("encwallet/decrypt").Start(ctx, "decrypt")
	defer span.End()

	value, err := s.decryptor.Decrypt(ctx, ciphertext)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.DecryptedAmount{}, err
	}
	return domain.DecryptedAmount{Raw: value.String(), Formatted: units.Format(value, decimals)}, nil
}

type TransferRequest struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount string
}

// TransferService builds encrypted transfer calls for the user's wallet to
// sign and send.
type TransferService struct {
	tokens    TokenReader
	encryptor Encryptor
}

func NewTransferService(tokens TokenReader, encryptor Encryptor) (*TransferService, error) {
	if tokens == nil || encryptor == nil {
		return nil, fmt.Errorf("%w: transfer service dependencies must not be nil", domain.ErrConfiguration)
	}
	return &TransferService{tokens: tokens, encryptor: encryptor}, nil
}

func (s *TransferService) Prepare(ctx context.Context, req TransferRequest) (domain.TxRequest, error) {
	if req.To == (common.Address{}) {
		return domain.TxRequest{}, fmt.Errorf("%w: recipient is required", domain.ErrMalformedInput)
	}
	info, err := s.tokens.Get(ctx, req.Token)
	if err != nil {
		return domain.TxRequest{}, err
	}
	amount, err := units.ParsePositive(req.Amount, info.Decimals)
	if err != nil {
		return domain.TxRequest{}, err
	}
	encrypted, err := encryptCiphertext(s.encryptor, amount)
	if err != nil {
		return domain.TxRequest{}, err
	}
	data, err := contracts.PackTransfer(req.To, encrypted)
	if err != nil {
		return domain.TxRequest{}, fmt.Errorf("pack transfer: %w", err)
	}
	return newTxRequest(req.From, req.Token, data), nil
}

type DeployRequest struct {
	From          common.Address
	Name          string
	Symbol        string
	Decimals      int
	InitialSupply string
}

type DeployConfig struct {
	Factory  common.Address
	Paillier common.Address
}

// DeployService builds factory calls that create new encrypted tokens.
type DeployService struct {
	encryptor Encryptor
	cfg       DeployConfig
}

func NewDeployService(encryptor Encryptor, cfg DeployConfig) (*DeployService, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("%w: deploy service encryptor must not be nil", domain.ErrConfiguration)
	}
	return &DeployService{encryptor: encryptor, cfg: cfg}, nil
}

func (s *DeployService) Prepare(ctx context.Context, req DeployRequest) (domain.TxRequest, error) {
	if s.cfg.Factory == (common.Address{}) {
		return domain.TxRequest{}, fmt.Errorf("%w: factory address is not configured", domain.ErrConfiguration)
	}
	if s.cfg.Paillier == (common.Address{}) {
		return domain.TxRequest{}, fmt.Errorf("%w: paillier contract address is not configured", domain.ErrConfiguration)
	}
	name := strings.TrimSpace(req.Name)
	symbol := strings.TrimSpace(req.Symbol)
	if name == "" || symbol == "" {
		return domain.TxRequest{}, fmt.Errorf("%w: token name and symbol are required", domain.ErrMalformedInput)
	}
	if req.Decimals < 0 || req.Decimals > MaxDecimals {
		return domain.TxRequest{}, fmt.Errorf("%w: decimals must be between 0 and %d", domain.ErrMalformedInput, MaxDecimals)
	}
	decimals := uint8(req.Decimals)

	supply, err := units.Parse(req.InitialSupply, decimals)
	if err != nil {
		return domain.TxRequest{}, err
	}
	if supply.Sign() < 0 {
		return domain.TxRequest{}, fmt.Errorf("%w: initial supply must not be negative", domain.ErrMalformedInput)
	}
	encrypted, err := encryptCiphertext(s.encryptor, supply)
	if err != nil {
		return domain.TxRequest{}, err
	}
	pub := s.encryptor.PublicKey()
	if pub == nil {
		return domain.TxRequest{}, fmt.Errorf("%w: public key not loaded", domain.ErrConfiguration)
	}
	key := contracts.PublicKey{N: pub.N.Bytes(), G: pub.G.Bytes()}

	data, err := contracts.PackCreateToken(name, symbol, decimals, encrypted, s.cfg.Paillier, key)
	if err != nil {
		return domain.TxRequest{}, fmt.Errorf("pack createDiscreteERC20: %w", err)
	}
	return newTxRequest(req.From, s.cfg.Factory, data), nil
}

func encryptCiphertext(encryptor Encryptor, amount *big.Int) (contracts.Ciphertext, error) {
	hex, err := encryptor.Encrypt(amount)
	if err != nil {
		return contracts.Ciphertext{}, err
	}
	return contracts.CiphertextFromHex(hex)
}

func newTxRequest(from, to common.Address, data []byte) domain.TxRequest {
	req := domain.TxRequest{To: to.Hex(), Data: hexutil.Encode(data), Value: "0x0"}
	if from != (common.Address{}) {
		req.From = from.Hex()
	}
	return req
}
