// Package seed loads the historical catalogue, figures and their dated
// posts, from a YAML file and upserts it by id.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"vestigia/internal/core/clock"
	figureEntity "vestigia/internal/core/figure"
	"vestigia/internal/core/locale"
	postEntity "vestigia/internal/core/post"
)

type FigureImporter interface {
	Upsert(ctx context.Context, f *figureEntity.Figure) error
}

type PostImporter interface {
	Import(ctx context.Context, p *postEntity.Post) (bool, error)
}

type File struct {
	Figures []Figure `yaml:"figures"`
	Posts   []Post   `yaml:"posts"`
}

type Figure struct {
	ID        string           `yaml:"id"`
	Name      string           `yaml:"name"`
	Title     locale.Localized `yaml:"title"`
	Biography locale.Localized `yaml:"biography"`
	AvatarURL string           `yaml:"avatar_url"`
	Verified  bool             `yaml:"verified"`
}

type Post struct {
	ID          string           `yaml:"id"`
	Figure      string           `yaml:"figure"`
	Date        string           `yaml:"date"`
	Content     locale.Localized `yaml:"content"`
	Source      locale.Localized `yaml:"source"`
	MediaURL    string           `yaml:"media_url"`
	Significant bool             `yaml:"significant"`
}

// Result counts what Apply wrote.
type Result struct {
	Figures      int
	PostsCreated int
	PostsUpdated int
}

// Parse decodes a seed document. Unknown keys are rejected so a typo does
// not silently drop a field.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &f, nil
}

func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Parse(fh)
}

// Apply upserts every figure, then every post. The whole file is checked
// before anything is written.
func Apply(ctx context.Context, f *File, figures FigureImporter, posts PostImporter, logger *zap.Logger) (Result, error) {
	var res Result
	fs, ps, err := f.entities()
	if err != nil {
		return res, err
	}

	for _, fig := range fs {
		if err := figures.Upsert(ctx, fig); err != nil {
			return res, err
		}
		res.Figures++
	}
	for _, p := range ps {
		created, err := posts.Import(ctx, p)
		if err != nil {
			return res, fmt.Errorf("import post %s: %w", p.ID, err)
		}
		if created {
			res.PostsCreated++
		} else {
			res.PostsUpdated++
		}
	}
	logger.Info("Seed applied",
		zap.Int("figures", res.Figures),
		zap.Int("posts_created", res.PostsCreated),
		zap.Int("posts_updated", res.PostsUpdated))
	return res, nil
}

func (f *File) entities() ([]*figureEntity.Figure, []*postEntity.Post, error) {
	figures := make([]*figureEntity.Figure, 0, len(f.Figures))
	for i, fig := range f.Figures {
		id, err := uuid.FromString(fig.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("figure %d: invalid id %q", i, fig.ID)
		}
		if fig.Name == "" {
			return nil, nil, fmt.Errorf("figure %s: name is required", fig.ID)
		}
		figures = append(figures, &figureEntity.Figure{
			ID:        id,
			Name:      fig.Name,
			Title:     datatypes.NewJSONType(orEmpty(fig.Title)),
			Biography: datatypes.NewJSONType(orEmpty(fig.Biography)),
			AvatarURL: fig.AvatarURL,
			Verified:  fig.Verified,
		})
	}

	posts := make([]*postEntity.Post, 0, len(f.Posts))
	for i, p := range f.Posts {
		id, err := uuid.FromString(p.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("post %d: invalid id %q", i, p.ID)
		}
		figureID, err := uuid.FromString(p.Figure)
		if err != nil {
			return nil, nil, fmt.Errorf("post %s: invalid figure %q", p.ID, p.Figure)
		}
		date, err := clock.ParseDate(p.Date)
		if err != nil {
			return nil, nil, fmt.Errorf("post %s: %w", p.ID, err)
		}
		posts = append(posts, &postEntity.Post{
			ID:           id,
			FigureID:     figureID,
			OriginalDate: date,
			Content:      datatypes.NewJSONType(orEmpty(p.Content)),
			Source:       datatypes.NewJSONType(orEmpty(p.Source)),
			MediaURL:     p.MediaURL,
			Significant:  p.Significant,
		})
	}
	return figures, posts, nil
}

func orEmpty(l locale.Localized) locale.Localized {
	if l == nil {
		return locale.Localized{}
	}
	return l
}
