package trust

// Level buckets a score for display and gating.
type Level string

const (
	LevelUnverified Level = "UNVERIFIED"
	LevelLow        Level = "LOW"
	LevelMedium     Level = "MEDIUM"
	LevelHigh       Level = "HIGH"
)

// MinTrustForCollaboration is the score a creator should hold before sponsors
// are encouraged to engage. It is advisory and surfaced in search results.
const MinTrustForCollaboration = 50.0

// LevelFor maps a score to its bucket: <20 unverified, <50 low, <75 medium, else high.
func LevelFor(score float64) Level {
	switch {
	case score < 20:
		return LevelUnverified
	case score < 50:
		return LevelLow
	case score < 75:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// MeetsCollaborationThreshold reports whether score reaches MinTrustForCollaboration.
func MeetsCollaborationThreshold(score float64) bool {
	return score >= MinTrustForCollaboration
}
