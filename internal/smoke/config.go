package smoke

import "time"

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Squads     int           // Number of squads to generate
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	Gameweek   int           // Gameweek every request targets
	Tier       string        // Subscription tier sent with every request
	Budget     float64       // Transfer budget in millions
	Seed       uint64        // Seed for squad generation; same seed, same squads
	OutputFile string        // Optional JSON dump of generated squads
	Verbose    bool          // Enable verbose logging
}

// Member is the wire form of a squad member.
type Member struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Position string  `json:"position"`
	Team     string  `json:"team"`
	Cost     float64 `json:"cost"`
	Starter  bool    `json:"starter"`
	Captain  bool    `json:"captain"`
}

// SquadRequest is the body shared by the rate, transfer and captain endpoints.
type SquadRequest struct {
	Team     []Member `json:"team"`
	Gameweek int      `json:"gameweek"`
	Tier     string   `json:"subscription_tier,omitempty"`
	Budget   *float64 `json:"budget,omitempty"`
}

// Endpoint stats for one route.
type Endpoint struct {
	Requests    int
	Successful  int
	ClientError int
	ServerError int
	Failed      int
	Latencies   []time.Duration
}

// Stats holds run statistics.
type Stats struct {
	SquadsGenerated int
	Endpoints       map[string]*Endpoint
	Violations      []string
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

func newStats() *Stats {
	return &Stats{
		Endpoints: map[string]*Endpoint{
			routeRate:      {},
			routeTransfers: {},
			routeCaptain:   {},
		},
		StartTime: time.Now(),
	}
}
