// Package aggregate joins one mandatory and one best-effort source into a single result.
//
// Both sources run concurrently. The outcome follows a fixed policy table:
//
//	primary   Mandatory   failure fails the aggregation with *PrimaryError
//	optional  BestEffort  failure, panic or timeout yields an absent value
//
// Aggregate always waits for both sources to settle, so the result does not
// depend on which one finishes first. An Aggregator holds no state between
// calls; memoise results on the consumer side (see cache.Memo).
//
// Example usage:
//
//	agg := aggregate.New[vehicles.Vehicle](aggregate.DefaultConfig())
//	res, err := agg.Aggregate(ctx, listVehicles, recommendVehicle)
//	if errors.Is(err, aggregate.ErrPrimaryFailed) {
//	    // show a retry affordance
//	}
//	if v, ok := res.Optional.Get(); ok {
//	    // render the banner
//	}
package aggregate
