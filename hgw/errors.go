package hgw

import "errors"

// Invariant violations. These indicate a defect in the caller, not a
// transient condition, and are the only errors the schedulers treat as fatal.
var (
	ErrBankruptTarget  = errors.New("target holds no money and never will")
	ErrNegativeThreads = errors.New("negative thread count in allocation")
	ErrUnknownAction   = errors.New("unknown action kind")
)
