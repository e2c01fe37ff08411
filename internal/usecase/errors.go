package usecase

import (
	"errors"

	"github.com/riskibarqy/sports-feed-sync/internal/extractor"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	// ErrTransport marks list/download failures of the remote feed source.
	ErrTransport = errors.New("feed transport failure")
	// ErrMalformedFeed is returned for documents the extractors reject.
	ErrMalformedFeed = extractor.ErrMalformedFeed
)
