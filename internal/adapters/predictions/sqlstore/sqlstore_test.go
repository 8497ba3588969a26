package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/okian/fplcoach/internal/adapters/predictions/sqlstore"
	"github.com/okian/fplcoach/internal/domain/catalog"
	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/okian/fplcoach/internal/domain/prediction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	predictPattern = `SELECT points FROM player_predictions WHERE player_id = \$1 AND gameweek = \$2 AND variant = \$3`
	variantPattern = `SELECT EXISTS \(SELECT 1 FROM prediction_models WHERE variant = \$1\)`
	playersPattern = `SELECT id, name, position, team, cost, status FROM players ORDER BY id`
)

func setup(t *testing.T) (*sqlstore.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlstore.New(db), mock
}

func TestStore_Predict(t *testing.T) {
	tests := []struct {
		name      string
		mockQuery func(mock sqlmock.Sqlmock)
		want      float64
		wantErr   error
	}{
		{
			name: "stored prediction",
			mockQuery: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(predictPattern).
					WithArgs(7, 3, "basic").
					WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(6.5))
			},
			want: 6.5,
		},
		{
			name: "unknown player",
			mockQuery: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(predictPattern).
					WithArgs(7, 3, "basic").
					WillReturnError(sql.ErrNoRows)
				mock.ExpectQuery(variantPattern).
					WithArgs("basic").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
			wantErr: prediction.ErrPlayerNotFound,
		},
		{
			name: "unknown variant",
			mockQuery: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(predictPattern).
					WithArgs(7, 3, "basic").
					WillReturnError(sql.ErrNoRows)
				mock.ExpectQuery(variantPattern).
					WithArgs("basic").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
			wantErr: prediction.ErrModelUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := setup(t)
			tt.mockQuery(mock)

			got, err := store.Predict(context.Background(), 7, 3, "basic")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_PredictDatabaseError(t *testing.T) {
	store, mock := setup(t)
	mock.ExpectQuery(predictPattern).WillReturnError(errors.New("connection reset"))

	_, err := store.Predict(context.Background(), 1, 1, "basic")
	require.Error(t, err)
	assert.NotErrorIs(t, err, prediction.ErrPlayerNotFound)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestStore_Load(t *testing.T) {
	store, mock := setup(t)
	rows := sqlmock.NewRows([]string{"id", "name", "position", "team", "cost", "status"}).
		AddRow(1, "Keeper", "GK", "ARS", "5.0", "a").
		AddRow(2, "Winger", "midfielder", "LIV", "12.5", nil).
		AddRow(3, "Striker", "4", nil, "14.0", "i")
	mock.ExpectQuery(playersPattern).WillReturnRows(rows)

	cat, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 3, cat.Len())
	p, ok := cat.Get(2)
	require.True(t, ok)
	assert.Equal(t, model.Midfielder, p.Position)
	assert.True(t, p.Cost.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, p.Status.Available())

	st, _ := cat.Get(3)
	assert.Equal(t, model.Forward, st.Position)
	assert.Equal(t, model.StatusInjured, st.Status)
	assert.Empty(t, st.Team)
}

func TestStore_LoadBadPosition(t *testing.T) {
	store, mock := setup(t)
	rows := sqlmock.NewRows([]string{"id", "name", "position", "team", "cost", "status"}).
		AddRow(1, "Coach", "manager", "ARS", "1.0", "a")
	mock.ExpectQuery(playersPattern).WillReturnRows(rows)

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, catalog.ErrInvalidCatalog)
}
