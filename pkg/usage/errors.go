package usage

import "errors"

var (
	ErrInvalidQuantity = errors.New("usage quantity must be positive")
	ErrFailedToRecord  = errors.New("failed to record usage")
	ErrFailedToSum     = errors.New("failed to sum usage records")
	ErrSeqContention   = errors.New("sequence contention not resolved after retries")
)
