package cache

import (
	"context"

	"encwallet/internal/application"
	"encwallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

// Tiered reads through an in-process cache to a shared one and fills the
// faster tier on a shared hit.
type Tiered struct {
	local  application.TokenCache
	shared application.TokenCache
}

func NewTiered(local, shared application.TokenCache) *Tiered {
	return &Tiered{local: local, shared: shared}
}

func (t *Tiered) GetToken(ctx context.Context, address common.Address) (domain.TokenInfo, bool) {
	if info, ok := t.local.GetToken(ctx, address); ok {
		return info, true
	}
	if t.shared == nil {
		return domain.TokenInfo{}, false
	}
	info, ok := t.shared.GetToken(ctx, address)
	if ok {
		t.local.SetToken(ctx, info)
	}
	return info, ok
}

func (t *Tiered) SetToken(ctx context.Context, info domain.TokenInfo) {
	t.local.SetToken(ctx, info)
	if t.shared != nil {
		t.shared.SetToken(ctx, info)
	}
}
