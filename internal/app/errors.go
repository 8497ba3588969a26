package service

import (
	"errors"

	"github.com/okian/fplcoach/internal/domain/model"
)

// Sentinel kinds returned by the service.
var (
	ErrNotStarted      = errors.New("service not started")
	ErrNoUsablePlayers = model.ErrNoUsablePlayers
	ErrNoProvider      = errors.New("no prediction provider configured")
)
