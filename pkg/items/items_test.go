package items

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgspace-backend/pkg/database"
	"tgspace-backend/pkg/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		want    models.Item
		wantErr bool
	}{
		{
			name: "text clears file fields",
			in:   Input{Type: "text", Title: " Note ", Content: " hello ", FileID: "x", FileName: "a.pdf"},
			want: models.Item{Type: models.ItemText, Title: "Note", Content: "hello"},
		},
		{
			name:    "text without content",
			in:      Input{Type: "text", Content: "   "},
			wantErr: true,
		},
		{
			name: "link",
			in:   Input{Type: "link", Content: "https://example.com/a?b=c"},
			want: models.Item{Type: models.ItemLink, Content: "https://example.com/a?b=c"},
		},
		{
			name:    "link without scheme",
			in:      Input{Type: "link", Content: "example.com"},
			wantErr: true,
		},
		{
			name:    "link with other scheme",
			in:      Input{Type: "link", Content: "javascript:alert(1)"},
			wantErr: true,
		},
		{
			name: "image clears content",
			in:   Input{Type: "IMAGE", Content: "ignored", FileID: "AgAC", FileName: "cat.png", FileSize: 10, MimeType: "image/png"},
			want: models.Item{Type: models.ItemImage, FileID: "AgAC", FileName: "cat.png", FileSize: 10, MimeType: "image/png"},
		},
		{
			name:    "file without id",
			in:      Input{Type: "file", FileName: "a.pdf"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			in:      Input{Type: "video", Content: "x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newService(t *testing.T) (*Service, *database.LocalDatabase, int64, int64) {
	t.Helper()
	db, err := database.NewLocalDatabase("")
	require.NoError(t, err)
	ctx := context.Background()
	space, err := db.FindOrCreateSpace(ctx, -1, "g")
	require.NoError(t, err)
	sec := &models.Section{Title: "S", SpaceID: space.ID}
	require.NoError(t, db.CreateSection(ctx, sec))
	return NewService(db), db, space.ID, sec.ID
}

func TestService_CreateAndLookup(t *testing.T) {
	svc, _, spaceID, sectionID := newService(t)
	ctx := context.Background()
	owner := int64(5)

	it, err := svc.Create(ctx, sectionID, spaceID, Input{Type: "text", Content: "hi"}, &owner)
	require.NoError(t, err)
	assert.Equal(t, 0, it.Order)
	assert.True(t, IsOwner(it, 5))
	assert.False(t, IsOwner(it, 6))

	_, err = svc.Lookup(ctx, it.ID, spaceID+1)
	assert.ErrorIs(t, err, database.ErrNotFound)

	got, err := svc.Lookup(ctx, it.ID, spaceID)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Content)
}

func TestService_UpdateRevalidates(t *testing.T) {
	svc, _, spaceID, sectionID := newService(t)
	ctx := context.Background()

	link, err := svc.Create(ctx, sectionID, spaceID, Input{Type: "link", Content: "https://a.example"}, nil)
	require.NoError(t, err)

	bad := "not a url"
	_, err = svc.Update(ctx, link, models.ItemPatch{Content: &bad})
	assert.ErrorIs(t, err, ErrValidation)

	good := " https://b.example "
	updated, err := svc.Update(ctx, link, models.ItemPatch{Content: &good})
	require.NoError(t, err)
	assert.Equal(t, "https://b.example", updated.Content)

	file, err := svc.Create(ctx, sectionID, spaceID, Input{Type: "file", FileID: "BQAC"}, nil)
	require.NoError(t, err)
	text := "ignored"
	updated, err = svc.Update(ctx, file, models.ItemPatch{Content: &text})
	require.NoError(t, err)
	assert.Empty(t, updated.Content)
}

func TestService_Reorder(t *testing.T) {
	svc, _, spaceID, sectionID := newService(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, sectionID, spaceID, Input{Type: "text", Content: "a"}, nil)
	b, _ := svc.Create(ctx, sectionID, spaceID, Input{Type: "text", Content: "b"}, nil)

	assert.ErrorIs(t, svc.Reorder(ctx, sectionID, nil), ErrValidation)
	assert.ErrorIs(t, svc.Reorder(ctx, sectionID, []int64{a.ID, a.ID}), ErrValidation)

	require.NoError(t, svc.Reorder(ctx, sectionID, []int64{b.ID, a.ID}))
	list, err := svc.List(ctx, sectionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, []string{list[0].Content, list[1].Content})
}

func TestNotifyOnCreate(t *testing.T) {
	assert.True(t, NotifyOnCreate(models.ItemText))
	assert.True(t, NotifyOnCreate(models.ItemLink))
	assert.False(t, NotifyOnCreate(models.ItemFile))
	assert.False(t, NotifyOnCreate(models.ItemImage))
}
