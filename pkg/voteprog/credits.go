package voteprog

// Credit accounting for landed votes. Votes landing within the grace
// period earn the maximum award; past it the award decays linearly by
// one credit per slot of latency, floored at one credit.

const (
	// VoteCreditsGraceSlots is the number of slots of latency that
	// still earn the full award.
	VoteCreditsGraceSlots = 2

	// VoteCreditsMaximumPerSlot is the award for a vote that lands
	// within the grace period.
	VoteCreditsMaximumPerSlot = 16
)

// CreditsForLatency returns the credits earned by a vote on a slot
// that landed with the given latency, in slots.
func CreditsForLatency(latency uint64) uint64 {
	if latency <= VoteCreditsGraceSlots {
		return VoteCreditsMaximumPerSlot
	}

	maxCreditsLatency := uint64(VoteCreditsGraceSlots + VoteCreditsMaximumPerSlot - 1)
	if latency <= maxCreditsLatency {
		return maxCreditsLatency + 1 - latency
	}
	return 1
}

// voteLatency computes the latency of a vote on voteSlot observed at
// currentSlot. Votes on future slots have zero latency.
func voteLatency(voteSlot uint64, currentSlot uint64) uint64 {
	if currentSlot <= voteSlot {
		return 0
	}
	return currentSlot - voteSlot
}
