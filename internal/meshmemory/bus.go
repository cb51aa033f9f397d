package meshmemory

import (
	"context"
)

// MemoryBusBuilder assembles a MemoryBus. A Journal is required; a
// SimilarityIndex is optional.
type MemoryBusBuilder struct {
	volatileConfig  VolatileConfig
	journal         Journal
	similarityIndex SimilarityIndex
}

// NewMemoryBusBuilder starts a builder using the supplied volatile config.
func NewMemoryBusBuilder(volatileConfig VolatileConfig) *MemoryBusBuilder {
	return &MemoryBusBuilder{volatileConfig: volatileConfig}
}

// WithJournal installs the durable journal. Required before Build.
func (b *MemoryBusBuilder) WithJournal(journal Journal) *MemoryBusBuilder {
	b.journal = journal
	return b
}

// WithSimilarityIndex installs an optional similarity index.
func (b *MemoryBusBuilder) WithSimilarityIndex(index SimilarityIndex) *MemoryBusBuilder {
	b.similarityIndex = index
	return b
}

// Build finalizes the MemoryBus, failing if no journal was installed.
func (b *MemoryBusBuilder) Build() (*MemoryBus, error) {
	if b.journal == nil {
		return nil, &MissingJournalError{}
	}
	return &MemoryBus{
		volatile:        NewVolatileStore(b.volatileConfig),
		journal:         b.journal,
		similarityIndex: b.similarityIndex,
	}, nil
}

// MemoryBus is the central memory facade used by the runtime, fanning a
// record out to the volatile store, the journal, and (when an embedding is
// present) the similarity index.
type MemoryBus struct {
	volatile        *VolatileStore
	journal         Journal
	similarityIndex SimilarityIndex
}

// Volatile returns the underlying volatile store.
func (bus *MemoryBus) Volatile() *VolatileStore { return bus.volatile }

// Journal returns the configured journal.
func (bus *MemoryBus) Journal() Journal { return bus.journal }

// SimilarityIndex returns the configured similarity index, if any.
func (bus *MemoryBus) SimilarityIndex() (SimilarityIndex, bool) {
	return bus.similarityIndex, bus.similarityIndex != nil
}

// Record persists record across all configured stores: volatile first, then
// the journal, then (when an embedding is present) the similarity index.
// This ordering is preserved from the system this bus's semantics were
// distilled from; a crash between the volatile write and the journal write
// can surface a record in Recent that a concurrent JournalTail call does not
// yet see.
func (bus *MemoryBus) Record(ctx context.Context, record MemoryRecord) error {
	bus.volatile.Push(record)

	if err := bus.journal.Append(ctx, record); err != nil {
		return err
	}

	if bus.similarityIndex != nil {
		if embedding, ok := record.Embedding(); ok {
			point := SimilarityPoint{
				ID:        record.ID(),
				Embedding: embedding,
				Metadata:  record.Metadata(),
				Tags:      record.Tags(),
			}
			if err := bus.similarityIndex.Upsert(ctx, point); err != nil {
				return err
			}
		}
	}

	return nil
}

// Recent returns recent records from volatile memory.
func (bus *MemoryBus) Recent(limit int) []MemoryRecord {
	return bus.volatile.Recent(limit)
}

// JournalTail reads the tail of the journal.
func (bus *MemoryBus) JournalTail(ctx context.Context, limit int) ([]MemoryRecord, error) {
	return bus.journal.Tail(ctx, limit)
}

// Recall queries the configured similarity index.
func (bus *MemoryBus) Recall(ctx context.Context, query SimilarityQuery) ([]SimilarityMatch, error) {
	if bus.similarityIndex == nil {
		return nil, &MissingSimilarityIndexError{}
	}
	return bus.similarityIndex.Query(ctx, query)
}

// Stats returns utilization statistics for the volatile store.
func (bus *MemoryBus) Stats() VolatileStats {
	return bus.volatile.Stats()
}
