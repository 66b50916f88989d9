package epiworld

import "github.com/pkg/errors"

// Error taxonomy (spec.md S7). Call sites wrap one of these sentinels with
// errors.Wrap/Wrapf so callers can test with errors.Is/errors.Cause while
// still getting a useful message and stack at the boundary.
var (
	// ErrInvalidArgument covers negative proportions, out-of-range state ids
	// on registration, and malformed config lines.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidGraph covers a fully disconnected graph on rewire, edge
	// endpoints outside [0,N), and source/target length mismatches.
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrInvariantViolated is returned by the event handlers when removing
	// an entity membership finds a back-index mismatch or removing a tool
	// finds no tool at the given index; these checks run whether or not
	// Model.Debug is set. The Debug-gated db.Database.VerifyInvariants
	// checks return their own errors, which do not wrap this sentinel, and
	// rewiring and the roulette never return it.
	ErrInvariantViolated = errors.New("invariant violated")

	// ErrOutOfRange covers unregistered virus/tool/entity ids and unknown
	// state labels or parameter names.
	ErrOutOfRange = errors.New("out of range")

	// ErrIOFailure covers file open failures for both input and output.
	ErrIOFailure = errors.New("io failure")

	// ErrLogicError covers calling a state updater on an agent whose
	// pathogen/virus bookkeeping contradicts the state being updated.
	ErrLogicError = errors.New("logic error")
)

// Shared format-string constants, following the corpus convention of
// reusable message templates so tests and call sites render identical
// wording (errors.go in the teacher repo does the same).
const (
	IntKeyNotFoundError = "key %d not found"
	IntKeyExistsError   = "key %d already exists"

	InvalidFloatParameterError  = "invalid %s %f, %s"
	InvalidIntParameterError    = "invalid %s %d, %s"
	InvalidStringParameterError = "invalid %s %s, %s"

	UnequalFloatParameterError  = "expected %s %f, instead got %f"
	UnequalIntParameterError    = "expected %s %d, instead got %d"
	UnequalStringParameterError = "expected %s %s, instead got %s"
	UnexpectedErrorWhileError   = "encountered error while %s: %s"
	ExpectedErrorWhileError     = "expected an error while %s, instead got none"
)
