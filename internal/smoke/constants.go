package smoke

import "time"

// Routes exercised by a run.
const (
	routeHealth    = "/healthz"
	routeTop       = "/players/top"
	routeRate      = "/team-score/rate"
	routeTransfers = "/recommendations/transfers"
	routeCaptain   = "/captain/best"
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	PoolPerPosition      = 50
	PercentageMultiplier = 100
	ProgressInterval     = time.Second
)
