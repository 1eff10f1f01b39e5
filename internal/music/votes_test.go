package music

import "testing"

func TestVoteQuorum(t *testing.T) {
	// Six eligible listeners in channel; quorum counts the other five
	// as denominator, so it takes three votes (3/5), not two (2/5).
	v := NewVoteLedger()
	if got := v.Cast("g1", "u1", 6); got != VotePending {
		t.Fatalf("vote 1 = %v, want VotePending", got)
	}
	if got := v.Cast("g1", "u2", 6); got != VotePending {
		t.Fatalf("vote 2 = %v, want VotePending", got)
	}
	if got := v.Cast("g1", "u3", 6); got != VoteQuorum {
		t.Fatalf("vote 3 = %v, want VoteQuorum", got)
	}
	// Quorum clears the ledger.
	if got := v.Count("g1"); got != 0 {
		t.Errorf("count after quorum = %d, want 0", got)
	}
}

func TestVoteDuplicate(t *testing.T) {
	v := NewVoteLedger()
	if got := v.Cast("g1", "u1", 6); got != VotePending {
		t.Fatalf("first vote = %v, want VotePending", got)
	}
	if got := v.Cast("g1", "u1", 6); got != VoteDuplicate {
		t.Errorf("repeat vote = %v, want VoteDuplicate", got)
	}
	if got := v.Count("g1"); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
}

func TestVoteTwoListeners(t *testing.T) {
	// One other listener: a single vote is an immediate quorum.
	v := NewVoteLedger()
	if got := v.Cast("g1", "u1", 2); got != VoteQuorum {
		t.Errorf("vote = %v, want VoteQuorum", got)
	}
}

func TestVoteClear(t *testing.T) {
	v := NewVoteLedger()
	v.Cast("g1", "u1", 6)
	v.Cast("g1", "u2", 6)
	v.Clear("g1")
	if got := v.Count("g1"); got != 0 {
		t.Errorf("count after clear = %d, want 0", got)
	}
	// Cleared voters may vote again on the next track.
	if got := v.Cast("g1", "u1", 6); got != VotePending {
		t.Errorf("vote after clear = %v, want VotePending", got)
	}
}

func TestVoteGuildsIndependent(t *testing.T) {
	v := NewVoteLedger()
	v.Cast("g1", "u1", 6)
	if got := v.Count("g2"); got != 0 {
		t.Errorf("g2 count = %d, want 0", got)
	}
}
