package chain

import (
	"context"

	"dexindexer/internal/domain"
)

// HeightResolver maps a relay block onto the denormalized height embedded in records
type HeightResolver interface {
	Resolve(ctx context.Context, block domain.Block) (domain.Height, error)
}

// OffsetResolver derives the parachain height from a fixed start block.
// Blocks before the start resolve to parachain height 0
type OffsetResolver struct {
	ParachainStart uint64
}

func NewOffsetResolver(start uint64) *OffsetResolver {
	return &OffsetResolver{ParachainStart: start}
}

func (r *OffsetResolver) Resolve(_ context.Context, block domain.Block) (domain.Height, error) {
	h := domain.Height{Absolute: block.Height}
	if block.Height >= r.ParachainStart {
		h.Parachain = block.Height - r.ParachainStart
	}
	return h, nil
}
