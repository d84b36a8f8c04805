package pipeline

import "fmt"

// Kind classifies why an attempt failed, independent of which platform or
// protocol was involved. The kind decides retry policy: transform-class
// failures are deterministic and never retried, transport and upstream
// failures may succeed on a later run.
type Kind string

const (
	// KindNotFound: the registry has no such work.
	KindNotFound Kind = "not_found"
	// KindEligibility: the work does not satisfy the platform's rules.
	KindEligibility Kind = "eligibility"
	// KindTransform: metadata could not be derived into the platform's
	// format. Deterministic for a given work snapshot.
	KindTransform Kind = "transform"
	// KindPackage: a content file could not be retrieved or verified.
	KindPackage Kind = "package"
	// KindTransport: the platform rejected or dropped the transmission.
	KindTransport Kind = "transport"
	// KindUpstream: the registry itself failed; a batch sharing the
	// registry aborts rather than burning every remaining work.
	KindUpstream Kind = "upstream"
)

// Stage names the pipeline step an error escaped from.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageValidate  Stage = "validate"
	StageTransform Stage = "transform"
	StagePackage   Stage = "package"
	StageDeliver   Stage = "deliver"
	StageRecord    Stage = "record"
)

// Error is the attempt-level failure, carrying its classification. Leaf
// packages return plain errors; the orchestrator assigns Kind and Stage at
// the boundary where it knows which step was running.
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func stageErr(kind Kind, stage Stage, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}
