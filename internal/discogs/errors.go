package discogs

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrMissingCredentials = errors.New("discogs: token and username are required")
	ErrMalformedResponse  = errors.New("discogs: malformed response")
)

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d (%s)", e.StatusCode, e.URL)
}

// IsTimeout reports whether err came from a deadline or a network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
