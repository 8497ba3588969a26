package prediction

import "errors"

// Sentinel kinds returned by prediction sources.
var (
	ErrPlayerNotFound   = errors.New("player not found")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrTimeout          = errors.New("prediction timeout")
)

// Outcome classifies a lookup error for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPlayerNotFound):
		return "not_found"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
