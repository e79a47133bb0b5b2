package dedupe

import "context"

// Deduper drops transport redeliveries of the same raw event before it reaches the processor.
// Seen marks id and reports whether it had been marked already
type Deduper interface {
	Seen(ctx context.Context, id string) (alreadySeen bool, err error)
}

// Nop never reports a duplicate
type Nop struct{}

func (Nop) Seen(context.Context, string) (bool, error) { return false, nil }
