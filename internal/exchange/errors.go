// Package exchange wraps the external collaborators: the Jupiter
// aggregator HTTP API and the Solana JSON-RPC node. Clients here never
// retry on their own; they classify failures and leave the retry decision
// to the executor.
package exchange

import (
	"errors"
	"fmt"
	"net"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Failure categories. Only transient ones are worth another attempt.
var (
	// ErrTransport marks network-level failures and 5xx responses.
	ErrTransport = errors.New("transport error")
	// ErrRateLimited marks HTTP 429 / node throttling.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidRoute marks quotes the aggregator cannot serve.
	ErrInvalidRoute = errors.New("no route for swap")
)

// IsTransient reports whether the failure may clear on retry. On-chain
// rejections and 4xx API errors never do.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrRateLimited)
}

// APIError is a non-transient HTTP error from the aggregator.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Body)
}

// OnChainError reports a transaction that landed and failed. Never retried:
// the swap terminates with the reason preserved.
type OnChainError struct {
	Signature string
	Detail    string
}

func (e *OnChainError) Error() string {
	return fmt.Sprintf("transaction %s failed on chain: %s", e.Signature, e.Detail)
}

// classifyHTTP maps an aggregator response status to an error category.
func classifyHTTP(op string, status int, body string) error {
	switch {
	case status == 429:
		return pkgerrors.Wrapf(ErrRateLimited, "%s: %s", op, body)
	case status >= 500:
		return pkgerrors.Wrapf(ErrTransport, "%s: http %d: %s", op, status, body)
	case strings.Contains(body, "COULD_NOT_FIND_ANY_ROUTE") || strings.Contains(body, "TOKEN_NOT_TRADABLE"):
		return pkgerrors.Wrapf(ErrInvalidRoute, "%s: %s", op, body)
	default:
		return &APIError{Op: op, Status: status, Body: body}
	}
}

// classifyRPC maps node client failures: network problems are transient,
// JSON-RPC rejections are not.
func classifyRPC(op string, err error) error {
	if err == nil {
		return nil
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return pkgerrors.Wrapf(ErrTransport, "%s: %v", op, err)
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "too many requests") || strings.Contains(msg, "429"):
		return pkgerrors.Wrapf(ErrRateLimited, "%s: %v", op, err)
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "unexpected eof"),
		strings.Contains(lower, "i/o timeout"):
		return pkgerrors.Wrapf(ErrTransport, "%s: %v", op, err)
	default:
		return pkgerrors.Wrap(err, op)
	}
}
