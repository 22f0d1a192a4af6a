package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	figureEntity "vestigia/internal/core/figure"
	postEntity "vestigia/internal/core/post"
)

type mockFigures struct {
	upserted []*figureEntity.Figure
}

func (m *mockFigures) Upsert(_ context.Context, f *figureEntity.Figure) error {
	m.upserted = append(m.upserted, f)
	return nil
}

type mockPosts struct {
	importFunc func(ctx context.Context, p *postEntity.Post) (bool, error)
	imported   []*postEntity.Post
}

func (m *mockPosts) Import(ctx context.Context, p *postEntity.Post) (bool, error) {
	m.imported = append(m.imported, p)
	if m.importFunc != nil {
		return m.importFunc(ctx, p)
	}
	return true, nil
}

func TestLoadFile_ShippedCatalogue(t *testing.T) {
	f, err := LoadFile("../../seed/timeline.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, f.Figures)
	require.NotEmpty(t, f.Posts)

	known := map[string]bool{}
	for _, fig := range f.Figures {
		known[fig.ID] = true
	}
	for _, p := range f.Posts {
		assert.True(t, known[p.Figure], "post %s references unknown figure %s", p.ID, p.Figure)
		assert.NotEmpty(t, p.Content["en"], "post %s has no English content", p.ID)
	}

	_, _, err = f.entities()
	require.NoError(t, err)
}

func TestApply(t *testing.T) {
	doc := `
figures:
  - id: 3f1c6a52-0b7e-4d2a-9a51-6c1e2f3b4a01
    name: Camille Desmoulins
    verified: true
    title: {en: Journalist, fr: Journaliste}
posts:
  - id: 9b2d4e61-7c3a-4f18-8e20-1a2b3c4d5e04
    figure: 3f1c6a52-0b7e-4d2a-9a51-6c1e2f3b4a01
    date: "1789-07-12"
    content: {en: To arms!}
  - id: 9b2d4e61-7c3a-4f18-8e20-1a2b3c4d5e05
    figure: 3f1c6a52-0b7e-4d2a-9a51-6c1e2f3b4a01
    date: "1789-07-14"
    significant: true
    content: {en: The Bastille has fallen.}
`
	f, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	figures := &mockFigures{}
	posts := &mockPosts{importFunc: func(_ context.Context, p *postEntity.Post) (bool, error) {
		return p.ID.String() == "9b2d4e61-7c3a-4f18-8e20-1a2b3c4d5e05", nil
	}}
	res, err := Apply(context.Background(), f, figures, posts, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, Result{Figures: 1, PostsCreated: 1, PostsUpdated: 1}, res)

	require.Len(t, figures.upserted, 1)
	assert.Equal(t, "Journaliste", figures.upserted[0].Title.Data()["fr"])
	require.Len(t, posts.imported, 2)
	assert.Equal(t, "1789-07-14", posts.imported[1].OriginalDate.Format("2006-01-02"))
	assert.True(t, posts.imported[1].Significant)
}

func TestApply_RejectsBadFileBeforeWriting(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"bad figure id", "figures:\n  - id: nope\n    name: X\n", `invalid id "nope"`},
		{"missing name", "figures:\n  - id: 3f1c6a52-0b7e-4d2a-9a51-6c1e2f3b4a01\n", "name is required"},
		{"bad date", "posts:\n  - id: 9b2d4e61-7c3a-4f18-8e20-1a2b3c4d5e05\n    figure: 3f1c6a52-0b7e-4d2a-9a51-6c1e2f3b4a01\n    date: 14/07/1789\n", "9b2d4e61-7c3a-4f18-8e20-1a2b3c4d5e05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse(strings.NewReader(tt.doc))
			require.NoError(t, err)
			figures, posts := &mockFigures{}, &mockPosts{}
			_, err = Apply(context.Background(), f, figures, posts, zap.NewNop())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, figures.upserted)
			assert.Empty(t, posts.imported)
		})
	}
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse(strings.NewReader("figures:\n  - id: x\n    nmae: typo\n"))
	assert.Error(t, err)
}

func TestApply_ImportError(t *testing.T) {
	f := &File{Posts: []Post{{
		ID:     "9b2d4e61-7c3a-4f18-8e20-1a2b3c4d5e05",
		Figure: "3f1c6a52-0b7e-4d2a-9a51-6c1e2f3b4a01",
		Date:   "1789-07-14",
	}}}
	posts := &mockPosts{importFunc: func(context.Context, *postEntity.Post) (bool, error) {
		return false, errors.New("post references an unknown figure")
	}}
	_, err := Apply(context.Background(), f, &mockFigures{}, posts, zap.NewNop())
	assert.ErrorContains(t, err, "unknown figure")
}
