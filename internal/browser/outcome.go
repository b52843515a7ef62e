package browser

// Outcome classifies the result of a bounded page interaction. Hop logic in
// the authenticator branches on these instead of catching errors.
type Outcome int

const (
	// OutcomeOK means the condition held or the action applied.
	OutcomeOK Outcome = iota
	// OutcomeNotFound means no element matched any selector.
	OutcomeNotFound
	// OutcomeTimeout means the bounded wait expired before the condition held.
	OutcomeTimeout
	// OutcomeNavFailed means the page interaction itself failed.
	OutcomeNavFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not-found"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeNavFailed:
		return "nav-failed"
	default:
		return "unknown"
	}
}
