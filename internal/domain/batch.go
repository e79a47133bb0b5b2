package domain

// Batch is the set of records produced since the last flush, grouped per kind.
// Kinds keeps the order in which each kind was first produced
type Batch struct {
	Kinds   []RecordKind
	Records map[RecordKind][]Record
	// EventIDs are the raw events whose records are all in this batch
	EventIDs []string
}

func (b *Batch) Of(kind RecordKind) []Record {
	if b == nil {
		return nil
	}
	return b.Records[kind]
}

func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, recs := range b.Records {
		n += len(recs)
	}
	return n
}
