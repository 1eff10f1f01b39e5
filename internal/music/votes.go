package music

import "sync"

type VoteResult int

const (
	// VotePending means the vote was recorded but quorum is not reached.
	VotePending VoteResult = iota
	// VoteDuplicate means the voter already voted for the current track.
	VoteDuplicate
	// VoteQuorum means this vote tipped the count past the threshold;
	// the ledger for the guild has been cleared.
	VoteQuorum
)

// VoteLedger tracks the distinct skip voters per guild for the current
// track only. A new track or a forced skip clears the guild's votes.
type VoteLedger struct {
	mu sync.Mutex
	m  map[string]map[string]struct{}
}

func NewVoteLedger() *VoteLedger {
	return &VoteLedger{m: make(map[string]map[string]struct{})}
}

// Cast records voterID's skip vote. eligible is the number of listeners
// that may vote: non-deaf, non-bot members of the voice session. Quorum
// is reached when votes / (eligible-1) >= 0.5, counting the other
// listeners as denominator.
func (v *VoteLedger) Cast(guildID, voterID string, eligible int) VoteResult {
	v.mu.Lock()
	defer v.mu.Unlock()

	votes := v.m[guildID]
	if votes == nil {
		votes = make(map[string]struct{})
		v.m[guildID] = votes
	}
	if _, ok := votes[voterID]; ok {
		return VoteDuplicate
	}
	votes[voterID] = struct{}{}

	others := eligible - 1
	if others < 1 {
		others = 1
	}
	if float64(len(votes))/float64(others) >= 0.5 {
		delete(v.m, guildID)
		return VoteQuorum
	}
	return VotePending
}

func (v *VoteLedger) Count(guildID string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.m[guildID])
}

// Clear drops the guild's votes; called when a new track starts or a
// skip is forced.
func (v *VoteLedger) Clear(guildID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.m, guildID)
}
