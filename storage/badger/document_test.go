package badger

import (
	"context"
	"testing"

	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRepository_AddAndGet(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	doc := &core.Document{
		Filename: "report.txt",
		Content:  "The flood of 2011 caused lasting damage.",
		Metadata: map[string]string{"year": "2011"},
	}

	added, err := repos.Documents.AddDocument(ctx, doc)
	require.NoError(t, err)
	assert.NotZero(t, added.Id)
	assert.Equal(t, core.IDFromContent(doc.Content), added.ContentHash)
	assert.False(t, added.InsertedAt.IsZero())

	got, err := repos.Documents.GetDocument(ctx, added.Id)
	require.NoError(t, err)
	assert.Equal(t, "report.txt", got.Filename)
	assert.Equal(t, "2011", got.Metadata["year"])
}

func TestDocumentRepository_RejectsDuplicateContent(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	_, err = repos.Documents.AddDocument(ctx, &core.Document{Filename: "a.txt", Content: "same text"})
	require.NoError(t, err)

	_, err = repos.Documents.AddDocument(ctx, &core.Document{Filename: "b.txt", Content: "same text"})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestDocumentRepository_RejectsInvalid(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	_, err = repos.Documents.AddDocument(context.Background(), &core.Document{Filename: "a.txt"})
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}

func TestDocumentRepository_ListUpdateDelete(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	first, err := repos.Documents.AddDocument(ctx, &core.Document{Filename: "one.txt", Content: "first"})
	require.NoError(t, err)
	second, err := repos.Documents.AddDocument(ctx, &core.Document{Filename: "two.txt", Content: "second"})
	require.NoError(t, err)

	docs, err := repos.Documents.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, first.Id, docs[0].Id)
	assert.Equal(t, second.Id, docs[1].Id)

	second.Vector = []float32{1, 0}
	require.NoError(t, repos.Documents.UpdateDocuments(ctx, second))
	got, err := repos.Documents.GetDocument(ctx, second.Id)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, got.Vector)

	require.NoError(t, repos.Documents.DeleteDocument(ctx, first.Id))
	_, err = repos.Documents.GetDocument(ctx, first.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Content hash index is released with the document
	_, err = repos.Documents.AddDocument(ctx, &core.Document{Filename: "again.txt", Content: "first"})
	assert.NoError(t, err)

	err = repos.Documents.DeleteDocument(ctx, first.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = repos.Documents.UpdateDocuments(ctx, &core.Document{Id: 999, Filename: "x", Content: "y"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentRepository_GetDocumentsSkipsMissing(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	doc, err := repos.Documents.AddDocument(ctx, &core.Document{Filename: "one.txt", Content: "first"})
	require.NoError(t, err)

	docs, err := repos.Documents.GetDocuments(ctx, doc.Id, 12345)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.Id, docs[0].Id)
}
