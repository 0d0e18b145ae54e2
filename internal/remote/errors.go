package remote

import (
	"context"
	"errors"
	"fmt"
)

// NetworkError is a transport failure: no response was received.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a response with a non-2xx status. Message is the server's
// error text when the body carried one.
type HTTPError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

// DecodeError is a successful response whose body was not the expected JSON.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decoding response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Reason turns an error from this package into a short message suitable for
// showing to a user.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var (
		netErr    *NetworkError
		httpErr   *HTTPError
		decodeErr *DecodeError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "the subscription service timed out"
	case errors.As(err, &httpErr):
		if httpErr.Message != "" {
			return httpErr.Message
		}
		return fmt.Sprintf("server responded with status %d", httpErr.StatusCode)
	case errors.As(err, &netErr):
		return "could not reach the subscription service"
	case errors.As(err, &decodeErr):
		return "unexpected response from the subscription service"
	default:
		return err.Error()
	}
}
