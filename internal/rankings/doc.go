// Package rankings is a client for the Lens social-graph ranking API.
//
// It builds request URLs, issues GET requests and decodes the JSON
// responses into typed records. Four operations are exposed:
//
//	client, err := rankings.NewClient(rankings.DefaultConfig(), logger)
//	profiles, err := client.GlobalRankings(ctx, strategy.FollowshipID, 1)
//	count, err := client.RankingsCount(ctx, strategy.FollowshipID)
//	rank, found, err := client.GlobalRankByHandle(ctx, strategy.FollowshipID, "alice.lens")
//	suggested, err := client.PersonalisedRankings(ctx, "alice.lens", 1)
//
// Not-found handles:
//
// The API answers lookups for unknown handles with a failure status and the
// plain-text body "Handle does not exist". The client maps that exact body to
// found=false (GlobalRankByHandle) or an empty slice (PersonalisedRankings).
// Every other failure status becomes a *RequestError; the upstream body is
// logged but never returned to the caller.
//
// Pagination:
//
// Pages are 1-based. GlobalRankings clamps pages below 1 to offset 0;
// PersonalisedRankings does not, so page 0 requests offset -PerPage.
// The asymmetry mirrors the upstream web client and is kept as is.
package rankings
