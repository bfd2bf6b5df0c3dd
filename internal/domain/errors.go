package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConnectionLost is returned when the RPC transport drops; the
	// ingestion loop resubscribes with backoff
	ErrConnectionLost = errors.New("rpc connection lost")

	// ErrRPCTimeout is returned when an RPC call exceeds its deadline
	ErrRPCTimeout = errors.New("rpc timeout")

	// ErrRPCRejected is returned when the node rejects a call as malformed;
	// never retried
	ErrRPCRejected = errors.New("rpc call rejected")

	// ErrAssetNotFound is returned when an asset is not in the cache
	ErrAssetNotFound = errors.New("asset not found")

	// ErrListingNotFound is returned when a listing is not in the cache
	ErrListingNotFound = errors.New("listing not found")

	// ErrListingInactive is returned when mutating a listing that is no longer active
	ErrListingInactive = errors.New("listing is not active")
)

// ClassifyRPCError maps a raw transport error onto the RPC error taxonomy.
// The original error is preserved in the message for logging.
func ClassifyRPCError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrRPCTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "eof"),
		strings.Contains(msg, "websocket: close"),
		strings.Contains(msg, "use of closed network"):
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return fmt.Errorf("%w: %v", ErrRPCTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrRPCRejected, err)
	}
}

// IsTransientRPCError reports whether the error is worth retrying with backoff
func IsTransientRPCError(err error) bool {
	return errors.Is(err, ErrConnectionLost) || errors.Is(err, ErrRPCTimeout)
}
