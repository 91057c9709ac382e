package aggregate

// Source names one of the two aggregated sources.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceOptional Source = "optional"
)

// Policy decides what a source failure does to the aggregation.
type Policy int

const (
	// Mandatory failures fail the whole aggregation.
	Mandatory Policy = iota

	// BestEffort failures are swallowed and leave the source's value absent.
	BestEffort
)

func (p Policy) String() string {
	switch p {
	case Mandatory:
		return "mandatory"
	case BestEffort:
		return "best_effort"
	default:
		return "unknown"
	}
}

var policies = map[Source]Policy{
	SourcePrimary:  Mandatory,
	SourceOptional: BestEffort,
}

// PolicyFor returns the failure policy applied to source.
func PolicyFor(source Source) Policy {
	return policies[source]
}
