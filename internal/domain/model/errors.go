package model

import "errors"

// ErrNoUsablePlayers is returned when every player an operation needs lacks
// a prediction.
var ErrNoUsablePlayers = errors.New("no usable players")
