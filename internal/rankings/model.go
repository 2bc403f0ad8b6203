package rankings

// Profile is one ranked account as returned by the API.
// FollowersCount is kept as text: the API sends it as a string and values
// may exceed the integer range of some consumers.
type Profile struct {
	ID             string `json:"id"`
	Rank           int    `json:"rank"`
	Handle         string `json:"handle"`
	FollowersCount string `json:"followersCount"`
}

type countResponse struct {
	Count int `json:"count"`
}

type rankResponse struct {
	Rank int `json:"rank"`
}
