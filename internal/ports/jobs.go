package ports

import (
	"context"
	"time"

	"vigil/internal/domain"
)

// ResolutionKind says how a delivered job ended.
type ResolutionKind int

const (
	// ResolveAck marks the delivery successful; the job is done.
	ResolveAck ResolutionKind = iota
	// ResolveRetry reschedules the job with backoff until the attempt
	// ceiling is reached, after which the queue dead-letters it.
	ResolveRetry
	// ResolveDead moves the job to the dead set immediately.
	ResolveDead
)

// Resolution is the handler's verdict on one delivery. Modeled as a value
// rather than panics or sentinel errors so the consumer loop stays explicit
// about retry semantics.
type Resolution struct {
	Kind   ResolutionKind
	Reason string
}

func Ack() Resolution { return Resolution{Kind: ResolveAck} }

func Retry(err error) Resolution {
	return Resolution{Kind: ResolveRetry, Reason: err.Error()}
}

func DeadLetter(reason string) Resolution {
	return Resolution{Kind: ResolveDead, Reason: reason}
}

// JobQueue is the durable, at-least-once work channel between admission and
// execution. Enqueueing happens through ScanRepository.CreateWithJob so the
// scan row and its job are created in one transaction.
type JobQueue interface {
	// ClaimNext claims the oldest due queued job, marking it running and
	// bumping its attempt count. found is false when the queue is idle.
	ClaimNext(ctx context.Context) (job domain.QueueJob, found bool, err error)

	// Resolve finalizes one delivery. A Retry past the job's attempt ceiling
	// dead-letters it and marks the associated scan failed with the reason.
	Resolve(ctx context.Context, job domain.QueueJob, res Resolution) error

	// PruneFinished deletes completed jobs older than completedBefore and
	// dead jobs older than deadBefore, bounding queue storage.
	PruneFinished(ctx context.Context, completedBefore, deadBefore time.Time) (int64, error)
}
