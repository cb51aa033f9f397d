package meshmemory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingVectorValidation(t *testing.T) {
	_, err := NewEmbeddingVector(nil)
	require.Error(t, err)

	_, err = NewEmbeddingVector([]float32{1, float32(nan())})
	require.Error(t, err)

	vec, err := NewEmbeddingVector([]float32{1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 3, vec.Len())
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestCosineSimilarity(t *testing.T) {
	a, err := NewEmbeddingVector([]float32{1, 0, 0})
	require.NoError(t, err)
	b, err := NewEmbeddingVector([]float32{1, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, float64(a.CosineSimilarity(b)), 1e-6)
}

func TestMemoryRecordBuilderRejectsEmptyTags(t *testing.T) {
	b := NewMemoryRecordBuilder(ChannelInput, []byte("payload"))
	_, err := b.Tag("")
	require.Error(t, err)

	b2 := NewMemoryRecordBuilder(ChannelInput, []byte("payload"))
	_, err = b2.Tags([]string{"ok", " "})
	require.Error(t, err)
}

func TestMemoryRecordBuilderConstructsRecord(t *testing.T) {
	b := NewMemoryRecordBuilder(ChannelOutput, []byte("payload"))
	b, err := b.Tag("mxp")
	require.NoError(t, err)
	b = b.Metadata("key", "value")

	record, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), record.Payload())
	assert.Equal(t, []string{"mxp"}, record.Tags())
	assert.Equal(t, "value", record.Metadata()["key"])
}

func TestVolatileStoreRespectsCapacity(t *testing.T) {
	store := NewVolatileStore(VolatileConfig{Capacity: 2})

	for _, content := range []string{"one", "two", "three"} {
		rec, err := NewMemoryRecordBuilder(ChannelInput, []byte(content)).Build()
		require.NoError(t, err)
		store.Push(rec)
	}

	recent := store.Recent(10)
	require.Len(t, recent, 2)
	assert.Equal(t, []byte("two"), recent[0].Payload())
	assert.Equal(t, []byte("three"), recent[1].Payload())
}

func TestVolatileStoreRespectsByteLimit(t *testing.T) {
	store := NewVolatileStore(VolatileConfig{Capacity: 10, MaxTotalBytes: 8})

	for _, content := range []string{"aaaa", "bbbb", "cccc"} {
		rec, err := NewMemoryRecordBuilder(ChannelInput, []byte(content)).Build()
		require.NoError(t, err)
		store.Push(rec)
	}

	stats := store.Stats()
	assert.True(t, stats.TotalBytes <= 8 || stats.Entries == 1)
}

func TestFileJournalAppendAndTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	journal, err := OpenFileJournal(path)
	require.NoError(t, err)
	defer journal.Close()

	ctx := context.Background()
	for _, content := range []string{"one", "two", "three"} {
		rec, err := NewMemoryRecordBuilder(ChannelInput, []byte(content)).Build()
		require.NoError(t, err)
		require.NoError(t, journal.Append(ctx, rec))
	}

	tail, err := journal.Tail(ctx, 2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, []byte("two"), tail[0].Payload())
	assert.Equal(t, []byte("three"), tail[1].Payload())

	require.NoError(t, journal.Clear(ctx))
	empty, err := journal.Tail(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFlatSimilarityIndexBasicQuery(t *testing.T) {
	idx := NewFlatSimilarityIndex()
	ctx := context.Background()

	alphaEmb, err := NewEmbeddingVector([]float32{1, 0, 0})
	require.NoError(t, err)
	betaEmb, err := NewEmbeddingVector([]float32{0, 1, 0})
	require.NoError(t, err)

	require.NoError(t, idx.Upsert(ctx, SimilarityPoint{ID: uuid.New(), Embedding: alphaEmb, Tags: []string{"alpha"}}))
	require.NoError(t, idx.Upsert(ctx, SimilarityPoint{ID: uuid.New(), Embedding: betaEmb, Tags: []string{"beta"}}))

	matches, err := idx.Query(ctx, SimilarityQuery{Embedding: alphaEmb, TopK: 1})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"alpha"}, matches[0].Tags)
	assert.InDelta(t, 1.0, float64(matches[0].Score), 1e-6)
}

func TestFlatSimilarityIndexTagFilter(t *testing.T) {
	idx := NewFlatSimilarityIndex()
	ctx := context.Background()
	id := uuid.New()

	emb, err := NewEmbeddingVector([]float32{1, 1})
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, SimilarityPoint{ID: id, Embedding: emb, Tags: []string{"alpha", "beta"}}))

	matches, err := idx.Query(ctx, SimilarityQuery{Embedding: emb, TopK: 5, Tags: []string{"beta", "alpha"}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)
}

func TestMemoryBusRecordsToAllComponents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bus.log")
	journal, err := OpenFileJournal(path)
	require.NoError(t, err)
	defer journal.Close()

	bus, err := NewMemoryBusBuilder(VolatileConfig{Capacity: 8}).
		WithJournal(journal).
		WithSimilarityIndex(NewFlatSimilarityIndex()).
		Build()
	require.NoError(t, err)

	rec, err := NewMemoryRecordBuilder(ChannelInput, []byte("hello")).Tag("mxp")
	require.NoError(t, err)
	record, err := rec.Build()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Record(ctx, record))

	recent := bus.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, []byte("hello"), recent[0].Payload())

	tail, err := bus.JournalTail(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tail, 1)

	// No embedding was attached, so the similarity index stays empty.
	emb, err := NewEmbeddingVector([]float32{1})
	require.NoError(t, err)
	matches, err := bus.Recall(ctx, SimilarityQuery{Embedding: emb, TopK: 1})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryBusMissingSimilarityIndexErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bus2.log")
	journal, err := OpenFileJournal(path)
	require.NoError(t, err)
	defer journal.Close()

	bus, err := NewMemoryBusBuilder(DefaultVolatileConfig()).WithJournal(journal).Build()
	require.NoError(t, err)

	emb, err := NewEmbeddingVector([]float32{1})
	require.NoError(t, err)

	_, err = bus.Recall(context.Background(), SimilarityQuery{Embedding: emb, TopK: 1})
	require.Error(t, err)
	var target *MissingSimilarityIndexError
	assert.ErrorAs(t, err, &target)
}
