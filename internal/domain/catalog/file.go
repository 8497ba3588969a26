package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/okian/fplcoach/internal/domain/prediction"
	"github.com/shopspring/decimal"
)

type playerRecord struct {
	ID       int     `koanf:"id"`
	Name     string  `koanf:"name"`
	Position string  `koanf:"position"`
	Team     string  `koanf:"team"`
	Cost     float64 `koanf:"cost"`
	Status   string  `koanf:"status"`
}

type fileLayout struct {
	Players     []playerRecord     `koanf:"players"`
	Predictions []prediction.Entry `koanf:"predictions"`
}

// FileSource reads players, and optionally predictions, from a YAML or JSON file.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load implements Source.
func (f *FileSource) Load(ctx context.Context) (*Catalog, error) {
	c, _, err := f.LoadWithPredictions(ctx)
	return c, err
}

// LoadWithPredictions returns the catalog together with any predictions the
// file carries.
func (f *FileSource) LoadWithPredictions(_ context.Context) (*Catalog, []prediction.Entry, error) {
	k := koanf.New(".")
	var parser koanf.Parser = yaml.Parser()
	if strings.EqualFold(filepath.Ext(f.path), ".json") {
		parser = json.Parser()
	}
	if err := k.Load(file.Provider(f.path), parser); err != nil {
		return nil, nil, fmt.Errorf("read catalog %s: %w", f.path, err)
	}

	var layout fileLayout
	if err := k.UnmarshalWithConf("", &layout, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, nil, fmt.Errorf("decode catalog %s: %w", f.path, err)
	}

	players := make([]model.Player, 0, len(layout.Players))
	for i, r := range layout.Players {
		pos, err := model.ParsePosition(r.Position)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: players[%d]: %v", ErrInvalidCatalog, i, err)
		}
		players = append(players, model.Player{
			ID:       r.ID,
			Name:     r.Name,
			Position: pos,
			Team:     r.Team,
			Cost:     decimal.NewFromFloat(r.Cost),
			Status:   model.Status(strings.ToLower(r.Status)),
		})
	}

	c, err := New(players)
	if err != nil {
		return nil, nil, err
	}
	return c, layout.Predictions, nil
}
