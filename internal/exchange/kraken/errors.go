package kraken

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brainfrog/Telegram-Kraken-Bot/internal/core"
)

// VenueError is an error reported by the venue inside the response envelope.
// The venue answered, so these are never retried.
type VenueError struct {
	Op      string
	Message string
}

func (e *VenueError) Error() string {
	return fmt.Sprintf("kraken %s: %s", e.Op, e.Message)
}

// Substrings that identify a fatal condition. A match aborts the call
// immediately, no matter how many retries remain.
var fatalPatterns = []struct {
	substr   string
	sentinel error
}{
	{"incorrect padding", core.ErrAuthInvalid},
	{"illegal base64 data", core.ErrAuthInvalid},
	{"invalid key", core.ErrAuthInvalid},
	{"invalid signature", core.ErrAuthInvalid},
	{"service:unavailable", core.ErrServiceUnavailable},
}

// classify attaches the matching sentinel to err so callers can branch with
// errors.Is. Errors without a fatal pattern come back unchanged.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	for _, p := range fatalPatterns {
		if strings.Contains(msg, p.substr) {
			return errors.Join(err, p.sentinel)
		}
	}
	return err
}

// retryable reports whether the call may be repeated. Only transport-level
// failures qualify; venue errors and fatal conditions are final.
func retryable(err error) bool {
	if errors.Is(err, core.ErrAuthInvalid) || errors.Is(err, core.ErrServiceUnavailable) {
		return false
	}
	var venueErr *VenueError
	return !errors.As(err, &venueErr)
}
