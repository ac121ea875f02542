package knowledge_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlinetcs/support-assistant/internal/knowledge"
	"github.com/onlinetcs/support-assistant/internal/log"
	"github.com/onlinetcs/support-assistant/internal/testutil"
)

// testVector builds a 768-dimensional vector lying in the plane of the first
// two axes. Cosine similarity against axisVector(0) is a/sqrt(a*a+b*b), which
// makes result ordering easy to predict.
func testVector(a, b float32) pgvector.Vector {
	v := make([]float32, knowledge.VectorDimension)
	v[0] = a
	v[1] = b
	return pgvector.NewVector(v)
}

func axisVector(axis int) pgvector.Vector {
	v := make([]float32, knowledge.VectorDimension)
	v[axis] = 1
	return pgvector.NewVector(v)
}

func setupStore(t *testing.T) *knowledge.Store {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	store, err := knowledge.NewStore(db.Pool, log.NewNop())
	require.NoError(t, err)
	return store
}

func TestStoreDocumentLifecycle_Integration(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc, err := store.CreateDocument(ctx, "handbook", "https://example.com/handbook.pdf")
	require.NoError(t, err)
	assert.Equal(t, "handbook", doc.DisplayName)
	assert.Equal(t, knowledge.StatusPending, doc.Status)

	_, err = store.CreateDocument(ctx, "handbook", "https://example.com/other.pdf")
	require.ErrorIs(t, err, knowledge.ErrDuplicateName)

	byID, err := store.Document(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byID.ID)

	byName, err := store.DocumentByName(ctx, "handbook")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byName.ID)

	_, err = store.DocumentByName(ctx, "missing")
	require.ErrorIs(t, err, knowledge.ErrDocumentNotFound)

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	require.NoError(t, store.DeleteDocument(ctx, doc.ID))
	err = store.DeleteDocument(ctx, doc.ID)
	require.ErrorIs(t, err, knowledge.ErrDocumentNotFound)
}

func TestStoreBeginIngestionClaims_Integration(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc, err := store.CreateDocument(ctx, "claims", "file.pdf")
	require.NoError(t, err)

	require.NoError(t, store.BeginIngestion(ctx, doc.ID))

	// A second claim while the first is in flight must lose.
	err = store.BeginIngestion(ctx, doc.ID)
	require.ErrorIs(t, err, knowledge.ErrAlreadyProcessing)

	// After the document fails, it can be claimed again.
	require.NoError(t, store.MarkFailed(ctx, doc.ID, "boom"))
	failed, err := store.Document(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, knowledge.StatusFailed, failed.Status)
	assert.Equal(t, "boom", failed.StatusMessage)

	require.NoError(t, store.BeginIngestion(ctx, doc.ID))

	err = store.BeginIngestion(ctx, uuid.New())
	require.ErrorIs(t, err, knowledge.ErrDocumentNotFound)
}

func TestStoreCompleteIngestion_Integration(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc, err := store.CreateDocument(ctx, "complete", "file.pdf")
	require.NoError(t, err)
	require.NoError(t, store.BeginIngestion(ctx, doc.ID))

	chunks := make([]knowledge.Chunk, 3)
	for i := range chunks {
		chunks[i] = knowledge.Chunk{
			DocumentID: doc.ID,
			Seq:        i,
			Content:    fmt.Sprintf("chunk %d", i),
			Embedding:  axisVector(i),
		}
	}
	require.NoError(t, store.CompleteIngestion(ctx, doc.ID, chunks, 42))

	got, err := store.Document(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, knowledge.StatusCompleted, got.Status)
	assert.Empty(t, got.StatusMessage)
	require.NotNil(t, got.ProcessingTimeMS)
	assert.EqualValues(t, 42, *got.ProcessingTimeMS)

	count, err := store.CountChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// A later failure clears the recorded duration.
	require.NoError(t, store.MarkFailed(ctx, doc.ID, "source vanished"))
	failed, err := store.Document(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, failed.ProcessingTimeMS)
	assert.Equal(t, "source vanished", failed.StatusMessage)

	// Re-ingestion replaces chunks instead of appending.
	require.NoError(t, store.ResetForReingest(ctx, doc.ID))
	reset, err := store.Document(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, knowledge.StatusPendingReingest, reset.Status)
	assert.Nil(t, reset.ProcessingTimeMS)

	count, err = store.CountChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, store.BeginIngestion(ctx, doc.ID))
	require.NoError(t, store.CompleteIngestion(ctx, doc.ID, chunks[:2], 9))

	count, err = store.CountChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	err = store.CompleteIngestion(ctx, doc.ID, chunks[:1], -1)
	require.Error(t, err)
}

func TestStoreDeleteCascadesChunks_Integration(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc, err := store.CreateDocument(ctx, "cascade", "file.pdf")
	require.NoError(t, err)
	require.NoError(t, store.BeginIngestion(ctx, doc.ID))
	require.NoError(t, store.CompleteIngestion(ctx, doc.ID, []knowledge.Chunk{{
		DocumentID: doc.ID,
		Seq:        0,
		Content:    "only chunk",
		Embedding:  axisVector(0),
	}}, 3))

	require.NoError(t, store.DeleteDocument(ctx, doc.ID))

	count, err := store.CountChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStoreNearestChunks_Integration(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	ingest := func(name string, chunks ...knowledge.Chunk) knowledge.Document {
		doc, err := store.CreateDocument(ctx, name, name+".pdf")
		require.NoError(t, err)
		require.NoError(t, store.BeginIngestion(ctx, doc.ID))
		for i := range chunks {
			chunks[i].DocumentID = doc.ID
			chunks[i].Seq = i
		}
		require.NoError(t, store.CompleteIngestion(ctx, doc.ID, chunks, 3))
		return doc
	}

	ingest("near",
		knowledge.Chunk{Content: "exact match", Embedding: testVector(1, 0)},
		knowledge.Chunk{Content: "close match", Embedding: testVector(4, 3)},
		knowledge.Chunk{Content: "far match", Embedding: testVector(1, 4)},
	)

	// Chunks of documents that are not COMPLETED must never be returned.
	pending, err := store.CreateDocument(ctx, "pending", "pending.pdf")
	require.NoError(t, err)
	require.NoError(t, store.BeginIngestion(ctx, pending.ID))
	require.NoError(t, store.CompleteIngestion(ctx, pending.ID, []knowledge.Chunk{{
		DocumentID: pending.ID,
		Seq:        0,
		Content:    "stale chunk",
		Embedding:  testVector(1, 0),
	}}, 3))
	require.NoError(t, store.MarkFailed(ctx, pending.ID, "source changed"))

	hits, err := store.NearestChunks(ctx, axisVector(0), 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "exact match", hits[0].Content)
	assert.Equal(t, "close match", hits[1].Content)
	assert.Equal(t, "far match", hits[2].Content)
	assert.Equal(t, "near", hits[0].DocumentName)

	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-4)
	assert.InDelta(t, 0.8, hits[1].Similarity, 1e-4)

	limited, err := store.NearestChunks(ctx, axisVector(0), 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "exact match", limited[0].Content)
}
