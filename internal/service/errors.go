package service

import (
	"errors"

	"dexindexer/internal/cache"
	"dexindexer/internal/decode"
)

var (
	ErrMarketNotFound   = errors.New("market not found")
	ErrLendTokenUnknown = errors.New("lend token has no known market")
	ErrPoolStateMissing = errors.New("stable pool state missing")
)

type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Classify maps a processing error onto its outcome. Unrecognized versions and missing
// upstream state are benign gaps and skip the event; everything else fails it
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeProcessed
	case errors.Is(err, decode.ErrUnrecognizedVersion),
		errors.Is(err, decode.ErrUnknownEvent),
		errors.Is(err, cache.ErrPoolNotFound),
		errors.Is(err, ErrPoolStateMissing),
		errors.Is(err, ErrMarketNotFound),
		errors.Is(err, ErrLendTokenUnknown):
		return OutcomeSkipped
	default:
		return OutcomeFailed
	}
}
