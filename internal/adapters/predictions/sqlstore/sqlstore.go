// Package sqlstore reads predictions and the player catalog from Postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/fplcoach/internal/domain/catalog"
	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/okian/fplcoach/internal/domain/prediction"
	"github.com/shopspring/decimal"

	_ "github.com/lib/pq"
)

const (
	predictQuery = `SELECT points FROM player_predictions WHERE player_id = $1 AND gameweek = $2 AND variant = $3`
	variantQuery = `SELECT EXISTS (SELECT 1 FROM prediction_models WHERE variant = $1)`
	playersQuery = `SELECT id, name, position, team, cost, status FROM players ORDER BY id`

	maxOpenConns    = 20
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
)

// Store implements prediction.Provider and catalog.Source over a *sql.DB.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres with the lib/pq driver and pings it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an open database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Predict returns the stored points for the player.
func (s *Store) Predict(ctx context.Context, playerID, gameweek int, variant string) (float64, error) {
	var pts float64
	err := s.db.QueryRowContext(ctx, predictQuery, playerID, gameweek, variant).Scan(&pts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, s.missing(ctx, playerID, gameweek, variant)
	}
	if err != nil {
		return 0, fmt.Errorf("postgres predict player %d: %w", playerID, err)
	}
	return pts, nil
}

func (s *Store) missing(ctx context.Context, playerID, gameweek int, variant string) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, variantQuery, variant).Scan(&exists); err != nil {
		return fmt.Errorf("postgres check variant %q: %w", variant, err)
	}
	if !exists {
		return fmt.Errorf("%w: variant %q", prediction.ErrModelUnavailable, variant)
	}
	return fmt.Errorf("%w: player %d gameweek %d", prediction.ErrPlayerNotFound, playerID, gameweek)
}

// Load reads the players table into a catalog.
func (s *Store) Load(ctx context.Context) (*catalog.Catalog, error) {
	rows, err := s.db.QueryContext(ctx, playersQuery)
	if err != nil {
		return nil, fmt.Errorf("postgres load players: %w", err)
	}
	defer rows.Close()

	var players []model.Player
	for rows.Next() {
		var (
			p        model.Player
			position string
			team     sql.NullString
			cost     decimal.Decimal
			status   sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &position, &team, &cost, &status); err != nil {
			return nil, fmt.Errorf("postgres scan player: %w", err)
		}
		pos, err := model.ParsePosition(position)
		if err != nil {
			return nil, fmt.Errorf("%w: player %d: %v", catalog.ErrInvalidCatalog, p.ID, err)
		}
		p.Position = pos
		p.Team = team.String
		p.Cost = cost
		p.Status = model.Status(status.String)
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres iterate players: %w", err)
	}
	return catalog.New(players)
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
