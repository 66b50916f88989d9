package report

import epiworld "github.com/epiworld-go/epiworld"

// ErrIOFailure re-exports the root package's sentinel so report errors
// participate in the same errors.Is chain as the rest of the module.
var ErrIOFailure = epiworld.ErrIOFailure
