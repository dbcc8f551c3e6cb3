package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expertene/internal/blocks"
	"expertene/internal/config"
	"expertene/internal/models"
)

func newEditorService(f *fixture) (EditorService, DocumentService) {
	docs := NewDocumentService(f.docs, f.users, f.engagement, nil, f.feed, f.bus, config.EditorConfig{}, f.logger)
	return NewEditorService(docs, f.cache, config.EditorConfig{}, f.logger), docs
}

func TestEditorSession_NewDocumentFlow(t *testing.T) {
	f := newFixture()
	editor, _ := newEditorService(f)
	ctx := context.Background()

	session, err := editor.Open(ctx, 1, nil)
	require.NoError(t, err)
	assert.Nil(t, session.DocumentID)
	require.Len(t, session.Blocks, 1)
	spacerID := session.Blocks[0].ID

	session, err = editor.AddBlock(ctx, session.ID, 1, blocks.TypeText, 0)
	require.NoError(t, err)
	require.Len(t, session.Blocks, 2)
	textID := session.Blocks[1].ID
	assert.Equal(t, textID, session.ActiveBlockID)

	session, err = editor.ApplyField(ctx, session.ID, 1, textID, "html", "<p>"+words(250)+"</p>")
	require.NoError(t, err)
	assert.Equal(t, "<p>"+words(250)+"</p>", session.Blocks[1].Content.(blocks.TextContent).HTML)

	session, err = editor.UpdateMeta(ctx, session.ID, 1, &SessionMeta{Title: "My Guide", Tags: []string{"guides"}})
	require.NoError(t, err)
	assert.Equal(t, "My Guide", session.Meta.Title)

	doc, err := editor.SaveSession(ctx, session.ID, 1, false)
	require.NoError(t, err)
	assert.Equal(t, "my-guide", doc.Slug)
	assert.Equal(t, 2, doc.ReadingTime)
	assert.False(t, doc.IsPublished)
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, spacerID, doc.Blocks[0].ID)

	reloaded, err := editor.Get(ctx, session.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, reloaded.DocumentID)
	assert.Equal(t, doc.ID, *reloaded.DocumentID)

	// A second save updates the same row.
	again, err := editor.SaveSession(ctx, session.ID, 1, true)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, again.ID)
	assert.True(t, again.IsPublished)
	assert.Len(t, f.docs.docs, 1)
}

func TestEditorSession_SaveWithoutTitle(t *testing.T) {
	f := newFixture()
	editor, _ := newEditorService(f)
	ctx := context.Background()

	session, err := editor.Open(ctx, 1, nil)
	require.NoError(t, err)

	_, err = editor.SaveSession(ctx, session.ID, 1, false)
	assert.True(t, IsValidationError(err))
	assert.Empty(t, f.docs.docs)
}

func TestEditorSession_BlockOperations(t *testing.T) {
	f := newFixture()
	editor, _ := newEditorService(f)
	ctx := context.Background()

	session, err := editor.Open(ctx, 1, nil)
	require.NoError(t, err)

	session, err = editor.AddBlock(ctx, session.ID, 1, blocks.TypeCode, 0)
	require.NoError(t, err)
	session, err = editor.AddBlock(ctx, session.ID, 1, blocks.TypeTable, 1)
	require.NoError(t, err)
	ids := []string{session.Blocks[0].ID, session.Blocks[1].ID, session.Blocks[2].ID}

	session, err = editor.MoveBlock(ctx, session.ID, 1, ids[2], blocks.Up)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0], ids[2], ids[1]}, blockIDs(session.Blocks))

	// Moving the first block up is a no-op.
	session, err = editor.MoveBlock(ctx, session.ID, 1, ids[0], blocks.Up)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0], ids[2], ids[1]}, blockIDs(session.Blocks))

	session, err = editor.UpdateBlock(ctx, session.ID, 1, ids[1], blocks.CodeContent{Language: "go", Code: "package main"})
	require.NoError(t, err)
	code := session.Blocks[2].Content.(blocks.CodeContent)
	assert.Equal(t, "go", code.Language)

	session, err = editor.DeleteBlock(ctx, session.ID, 1, ids[2])
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0], ids[1]}, blockIDs(session.Blocks))
	assert.Empty(t, session.ActiveBlockID)

	// Unknown ids are ignored.
	session, err = editor.DeleteBlock(ctx, session.ID, 1, "missing")
	require.NoError(t, err)
	assert.Len(t, session.Blocks, 2)

	_, err = editor.AddBlock(ctx, session.ID, 1, blocks.Type("gallery"), 0)
	assert.True(t, IsValidationError(err))

	_, err = editor.ApplyField(ctx, session.ID, 1, ids[1], "nonsense", 1)
	assert.True(t, IsValidationError(err))
}

func TestEditorSession_Ownership(t *testing.T) {
	f := newFixture()
	editor, _ := newEditorService(f)
	ctx := context.Background()

	session, err := editor.Open(ctx, 1, nil)
	require.NoError(t, err)

	_, err = editor.Get(ctx, session.ID, 2)
	assert.True(t, IsNotFoundError(err))
	_, err = editor.AddBlock(ctx, session.ID, 2, blocks.TypeText, 0)
	assert.True(t, IsNotFoundError(err))

	foreign := f.docs.put(&models.Document{AuthorID: 3, Title: "Theirs"})
	_, err = editor.Open(ctx, 1, &foreign.ID)
	assert.True(t, IsNotFoundError(err))

	require.NoError(t, editor.Close(ctx, session.ID, 1))
	_, err = editor.Get(ctx, session.ID, 1)
	assert.True(t, IsNotFoundError(err))
}

func TestEditorSession_OpenExisting(t *testing.T) {
	f := newFixture()
	editor, _ := newEditorService(f)
	ctx := context.Background()

	existing := f.docs.put(&models.Document{
		AuthorID: 1,
		Title:    "Existing",
		Slug:     "existing",
		Tags:     []string{"a"},
		Blocks:   blocks.List{textBlock("hello")},
	})

	session, err := editor.Open(ctx, 1, &existing.ID)
	require.NoError(t, err)
	require.NotNil(t, session.DocumentID)
	assert.Equal(t, "Existing", session.Meta.Title)
	assert.Len(t, session.Blocks, 1)

	doc, err := editor.SaveSession(ctx, session.ID, 1, false)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, doc.ID)
	assert.Equal(t, "existing", doc.Slug)
}

func blockIDs(list blocks.List) []string {
	out := make([]string, len(list))
	for i, b := range list {
		out[i] = b.ID
	}
	return out
}

func TestEditorSession_UpdateBlockRejectsInvalidContent(t *testing.T) {
	f := newFixture()
	editor, _ := newEditorService(f)
	ctx := context.Background()

	session, err := editor.Open(ctx, 1, nil)
	require.NoError(t, err)
	session, err = editor.AddBlock(ctx, session.ID, 1, blocks.TypeTable, 0)
	require.NoError(t, err)
	tableID := session.Blocks[1].ID
	before := session.Blocks[1].Content

	ragged := blocks.TableContent{Headers: []string{"a", "b"}, Rows: [][]string{{}}, Width: 100}
	_, err = editor.UpdateBlock(ctx, session.ID, 1, tableID, ragged)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = editor.UpdateBlock(ctx, session.ID, 1, tableID, blocks.CodeContent{Language: "cobol"})
	assert.True(t, IsValidationError(err))

	session, err = editor.ApplyField(ctx, session.ID, 1, tableID, "add_column", map[string]any{})
	require.NoError(t, err)
	table := session.Blocks[1].Content.(blocks.TableContent)
	assert.Equal(t, before.(blocks.TableContent).Columns()+1, table.Columns())
	assert.NoError(t, session.Blocks[1].Validate())
}
