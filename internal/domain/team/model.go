package team

// Team groups the per-source rosters that represent the same real-world team.
// It has no external identity.
type Team struct {
	ID int64
}
