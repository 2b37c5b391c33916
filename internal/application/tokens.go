package application

import (
	"context"
	"fmt"

	"encwallet/internal/contracts"
	"encwallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

const tokenReadConcurrency = 8

type ContractCaller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// TokenCache holds token metadata. Lookups that fail behave as misses.
type TokenCache interface {
	GetToken(ctx context.Context, address common.Address) (domain.TokenInfo, bool)
	SetToken(ctx context.Context, info domain.TokenInfo)
}

type nopTokenCache struct{}

func (nopTokenCache) GetToken(context.Context, common.Address) (domain.TokenInfo, bool) {
	return domain.TokenInfo{}, false
}
func (nopTokenCache) SetToken(context.Context, domain.TokenInfo) {}

// TokenRegistry enumerates tokens deployed by the factory and reads their
// metadata.
type TokenRegistry struct {
	caller  ContractCaller
	factory common.Address
	cache   TokenCache
}

func NewTokenRegistry(caller ContractCaller, factory common.Address, cache TokenCache) (*TokenRegistry, error) {
	if caller == nil {
		return nil, fmt.Errorf("%w: token registry caller must not be nil", domain.ErrConfiguration)
	}
	if cache == nil {
		cache = nopTokenCache{}
	}
	return &TokenRegistry{caller: caller, factory: factory, cache: cache}, nil
}

func (r *TokenRegistry) List(ctx context.Context) ([]domain.TokenInfo, error) {
	if r.factory == (common.Address{}) {
		return nil, fmt.Errorf("%w: factory address is not configured", domain.ErrConfiguration)
	}
	data, err := contracts.PackTokensCount()
	if err != nil {
		return nil, err
	}
	out, err := r.caller.Call(ctx, r.factory, data)
	if err != nil {
		return nil, fmt.Errorf("tokens count: %w", err)
	}
	count, err := contracts.UnpackTokensCount(out)
	if err != nil {
		return nil, err
	}
	if !count.IsUint64() {
		return nil, fmt.Errorf("%w: token count %s out of range", domain.ErrReconstruction, count)
	}

	tokens := make([]domain.TokenInfo, count.Uint64())
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(tokenReadConcurrency)
	for i := range tokens {
		group.Go(func() error {
			address, err := r.tokenAt(groupCtx, uint64(i))
			if err != nil {
				return err
			}
			info, err := r.Get(groupCtx, address)
			if err != nil {
				return err
			}
			tokens[i] = info
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *TokenRegistry) Get(ctx context.Context, address common.Address) (domain.TokenInfo, error) {
	if info, ok := r.cache.GetToken(ctx, address); ok {
		return info, nil
	}

	info := domain.TokenInfo{Address: address.Hex()}
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		name, err := readToken(groupCtx, r.caller, address, contracts.PackName, contracts.UnpackName)
		info.Name = name
		return err
	})
	group.Go(func() error {
		symbol, err := readToken(groupCtx, r.caller, address, contracts.PackSymbol, contracts.UnpackSymbol)
		info.Symbol = symbol
		return err
	})
	group.Go(func() error {
		decimals, err := readToken(groupCtx, r.caller, address, contracts.PackDecimals, contracts.UnpackDecimals)
		info.Decimals = decimals
		return err
	})
	if err := group.Wait(); err != nil {
		return domain.TokenInfo{}, fmt.Errorf("token %s: %w", address.Hex(), err)
	}

	r.cache.SetToken(ctx, info)
	return info, nil
}

// IsToken asks the factory whether address is one of its tokens.
func (r *TokenRegistry) IsToken(ctx context.Context, address common.Address) (bool, error) {
	if r.factory == (common.Address{}) {
		return false, fmt.Errorf("%w: factory address is not configured", domain.ErrConfiguration)
	}
	data, err := contracts.PackIsToken(address)
	if err != nil {
		return false, err
	}
	out, err := r.caller.Call(ctx, r.factory, data)
	if err != nil {
		return false, err
	}
	return contracts.UnpackIsToken(out)
}

func (r *TokenRegistry) tokenAt(ctx context.Context, index uint64) (common.Address, error) {
	data, err := contracts.PackGetToken(index)
	if err != nil {
		return common.Address{}, err
	}
	out, err := r.caller.Call(ctx, r.factory, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("token at %d: %w", index, err)
	}
	return contracts.UnpackGetToken(out)
}

func readToken[T any](ctx context.Context, caller ContractCaller, token common.Address, pack func() ([]byte, error), unpack func([]byte) (T, error)) (T, error) {
	var zero T
	data, err := pack()
	if err != nil {
		return zero, err
	}
	out, err := caller.Call(ctx, token, data)
	if err != nil {
		return zero, err
	}
	return unpack(out)
}
