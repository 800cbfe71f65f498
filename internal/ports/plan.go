package ports

import "context"

// PlanDecision is the plan service's answer for one requester.
type PlanDecision struct {
	Allowed    bool
	Reason     string
	DailyLimit int
}

// PlanService is the external payment/plan capability. The admission gate
// consults it for authenticated requesters only; billing itself is out of
// scope here.
type PlanService interface {
	CheckScanLimit(ctx context.Context, requesterID string) (PlanDecision, error)
	TrackScanUsage(ctx context.Context, requesterID string) error
}
