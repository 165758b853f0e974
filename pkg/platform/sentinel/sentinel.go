package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: the row/document/key does not exist
//   - ErrConflict: a conditional write lost (e.g. ledger entry no longer
//     pending, profile not in the expected status, duplicate key)
//
// For validation errors use pkg/domain-errors directly.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
