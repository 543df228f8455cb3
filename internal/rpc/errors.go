package rpc

import (
	"context"
	"errors"
	"strings"
)

// Error classes reported in the error_type label of chainhound_rpc_errors_total.
const (
	ErrorClassTimeout     = "timeout"
	ErrorClassCanceled    = "canceled"
	ErrorClassRateLimited = "rate_limited"
	ErrorClassServer      = "server_error"
	ErrorClassNetwork     = "network_error"
	ErrorClassClient      = "client_error"
)

// ClassifyError maps an RPC error to one of the error classes.
// A nil error yields an empty string.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return ErrorClassCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return ErrorClassTimeout
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429") ||
		strings.Contains(lower, "too many requests"):
		return ErrorClassRateLimited
	case strings.Contains(lower, "500") || strings.Contains(lower, "502") || strings.Contains(lower, "503") ||
		strings.Contains(lower, "504") || strings.Contains(lower, "internal server error") ||
		strings.Contains(lower, "bad gateway") || strings.Contains(lower, "service unavailable"):
		return ErrorClassServer
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "network is unreachable") || strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "broken pipe") || strings.Contains(lower, "eof"):
		return ErrorClassNetwork
	default:
		return ErrorClassClient
	}
}
