// Package strategy holds the fixed catalog of ranking strategies served by
// the Lens ranking API.
package strategy

// Strategy is a named server-side ranking algorithm variant.
// ID is opaque to the client and is passed to the API verbatim.
type Strategy struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Strategy IDs known to the catalog.
const (
	FollowshipID = "6"
	EngagementID = "3"
	InfluencerID = "5"
	CreatorID    = "7"
)

// catalog is ordered; presentation layers render strategies in this order.
var catalog = [...]Strategy{
	{
		ID:          FollowshipID,
		Name:        "Followship",
		Description: "This strategy emphasizes only on the relevant and meaningful follows as peer-to-peer attestations, disregarding mirrors and comments.",
	},
	{
		ID:          EngagementID,
		Name:        "Engagement",
		Description: "This strategy emphasizes on social engagements as attestations, combining follows, mirrors and comments.",
	},
	{
		ID:          InfluencerID,
		Name:        "Influencer",
		Description: "Similar to the engagement strategy, but adds another datapoint where posts can be turned into NFT collections by influencers.",
	},
	{
		ID:          CreatorID,
		Name:        "Creator",
		Description: "Similar to the influencer strategy, we add another datapoint where NFT collections have a price associated in secondary markets.",
	},
}

// All returns the catalog in display order. The returned slice is a copy.
func All() []Strategy {
	out := make([]Strategy, len(catalog))
	copy(out, catalog[:])
	return out
}

// Default returns the first catalog entry.
func Default() Strategy {
	return catalog[0]
}

// Lookup returns the catalog entry with the given ID.
// The second return value reports whether the ID is in the catalog.
func Lookup(id string) (Strategy, bool) {
	for _, s := range catalog {
		if s.ID == id {
			return s, true
		}
	}
	return Strategy{}, false
}
