package matcher

import "errors"

// ErrPatternPanicked marks a pattern whose evaluation panicked inside the pool.
var ErrPatternPanicked = errors.New("pattern evaluation panicked")
