package rankings

import (
	"net/url"
	"strconv"
	"strings"
)

// Upstream paths.
const (
	PathRankings      = "/rankings"
	PathRankingsCount = "/rankings_count"
	PathRankingIndex  = "/ranking_index"
	PathSuggest       = "/suggest"
)

// GlobalOffset returns the row offset for a 1-based page of global rankings.
// Pages below 1 map to offset 0.
func GlobalOffset(page, perPage int) int {
	return max(page-1, 0) * perPage
}

// PersonalisedOffset returns the row offset for a 1-based page of
// personalised rankings. It does not clamp: page 0 yields -perPage.
func PersonalisedOffset(page, perPage int) int {
	return (page - 1) * perPage
}

// requestBuilder projects operation inputs onto upstream URLs.
type requestBuilder struct {
	base    *url.URL
	perPage int
}

func newRequestBuilder(baseURL string, perPage int) (requestBuilder, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return requestBuilder{}, err
	}
	return requestBuilder{base: u, perPage: perPage}, nil
}

func (b requestBuilder) build(path string, params url.Values) string {
	u := *b.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawPath = ""
	u.RawQuery = params.Encode()
	return u.String()
}

func (b requestBuilder) globalRankings(strategyID string, page int) string {
	params := url.Values{}
	params.Set("strategy_id", strategyID)
	params.Set("offset", strconv.Itoa(GlobalOffset(page, b.perPage)))
	params.Set("limit", strconv.Itoa(b.perPage))
	return b.build(PathRankings, params)
}

func (b requestBuilder) rankingsCount(strategyID string) string {
	params := url.Values{}
	params.Set("strategy_id", strategyID)
	return b.build(PathRankingsCount, params)
}

func (b requestBuilder) rankingIndex(strategyID, handle string) string {
	params := url.Values{}
	params.Set("strategy_id", strategyID)
	params.Set("handle", handle)
	return b.build(PathRankingIndex, params)
}

func (b requestBuilder) suggest(handle string, page int) string {
	params := url.Values{}
	params.Set("handle", handle)
	params.Set("offset", strconv.Itoa(PersonalisedOffset(page, b.perPage)))
	params.Set("limit", strconv.Itoa(b.perPage))
	return b.build(PathSuggest, params)
}
