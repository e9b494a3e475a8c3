// shared/progression/rank.go
package progression

// Tier is one named progression level, unlocked once a profile's reputation
// reaches MinReputation. Thresholds are inclusive lower bounds.
type Tier struct {
	Level         int    `json:"level"`
	Name          string `json:"name"`
	MinReputation int64  `json:"minReputation"`
	Benefit       string `json:"benefit"`
}

// DefaultTiers is the career ladder, ordered by strictly increasing
// MinReputation with the first tier at 0.
var DefaultTiers = []Tier{
	{Level: 1, Name: "Rookie", MinReputation: 0, Benefit: "Basic Access"},
	{Level: 2, Name: "Apprentice", MinReputation: 100, Benefit: "Upload Limit Increased"},
	{Level: 3, Name: "Pro", MinReputation: 300, Benefit: "Create Syndicate (Gang)"},
	{Level: 4, Name: "Legend", MinReputation: 600, Benefit: "Reduced Battle Fees"},
	{Level: 5, Name: "Titan", MinReputation: 1000, Benefit: "Global Territory Control"},
}

// CrewMinTierLevel is the tier level required to establish a syndicate.
const CrewMinTierLevel = 3

// Standing is the result of ranking a reputation score: the tier reached,
// progress toward the next one, and whether the ladder is topped out.
type Standing struct {
	Tier      Tier    `json:"tier"`
	Next      *Tier   `json:"next,omitempty"`
	Progress  float64 `json:"progress"` // fraction in [0,1] toward Next
	RepToNext int64   `json:"repToNext"`
	MaxRank   bool    `json:"maxRank"`
}

// Rank maps a reputation score onto the tier table: the highest tier whose
// threshold is at or below reputation, plus clamped progress toward the next
// tier. At or past the last threshold the standing reports MaxRank with
// progress 1 and no next tier. Pure and total for any reputation >= 0.
func Rank(reputation int64, tiers []Tier) Standing {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}

	idx := 0
	for i := len(tiers) - 1; i >= 0; i-- {
		if reputation >= tiers[i].MinReputation {
			idx = i
			break
		}
	}

	cur := tiers[idx]
	if idx == len(tiers)-1 {
		return Standing{Tier: cur, Progress: 1, MaxRank: true}
	}

	next := tiers[idx+1]
	span := next.MinReputation - cur.MinReputation
	progress := float64(reputation-cur.MinReputation) / float64(span)
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	return Standing{
		Tier:      cur,
		Next:      &next,
		Progress:  progress,
		RepToNext: next.MinReputation - reputation,
	}
}

// CanCreateCrew reports whether a profile with the given reputation has
// reached the syndicate-creation tier.
func CanCreateCrew(reputation int64) bool {
	return Rank(reputation, DefaultTiers).Tier.Level >= CrewMinTierLevel
}

// RankName is a convenience for the derived rank string stored (but never
// trusted) on the profile document.
func RankName(reputation int64) string {
	return Rank(reputation, DefaultTiers).Tier.Name
}
