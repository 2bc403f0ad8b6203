package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/lensrank/internal/middleware"
	"github.com/onnwee/lensrank/internal/rankings"
	"github.com/onnwee/lensrank/internal/strategy"
	"github.com/onnwee/lensrank/internal/tracing"
	"github.com/onnwee/lensrank/internal/validate"
)

// RankingsService is the rankings client surface the handlers use.
// *rankings.Client implements it.
type RankingsService interface {
	PerPage() int
	GlobalRankings(ctx context.Context, strategyID string, page int) ([]rankings.Profile, error)
	RankingsCount(ctx context.Context, strategyID string) (int, error)
	GlobalRankByHandle(ctx context.Context, strategyID, handle string) (int, bool, error)
	PersonalisedRankings(ctx context.Context, handle string, page int) ([]rankings.Profile, error)
}

// RankingsResponse is one page of a strategy's global rankings.
type RankingsResponse struct {
	StrategyID string             `json:"strategy_id"`
	Page       int                `json:"page"`
	PerPage    int                `json:"per_page"`
	Profiles   []rankings.Profile `json:"profiles"`
}

// CountResponse reports how many profiles a strategy ranks.
type CountResponse struct {
	StrategyID string `json:"strategy_id"`
	Count      int    `json:"count"`
	Pages      int    `json:"pages"`
}

// RankResponse is a handle's rank under one strategy.
type RankResponse struct {
	Handle     string `json:"handle"`
	StrategyID string `json:"strategy_id"`
	Rank       int    `json:"rank"`
}

// StrategyRank is one entry of ProfileRanksResponse. Rank is null when the
// handle is not ranked under the strategy.
type StrategyRank struct {
	StrategyID string `json:"strategy_id"`
	Strategy   string `json:"strategy"`
	Rank       *int   `json:"rank"`
}

// ProfileRanksResponse lists a handle's rank under every catalog strategy.
type ProfileRanksResponse struct {
	Handle string         `json:"handle"`
	Ranks  []StrategyRank `json:"ranks"`
}

// SuggestionsResponse is one page of personalised rankings for a handle.
type SuggestionsResponse struct {
	Handle   string             `json:"handle"`
	Page     int                `json:"page"`
	Profiles []rankings.Profile `json:"profiles"`
}

// RankingsHandlers serves the rankings API over HTTP.
type RankingsHandlers struct {
	service RankingsService
	logger  *slog.Logger
}

// NewRankingsHandlers creates a new RankingsHandlers instance.
func NewRankingsHandlers(service RankingsService, logger *slog.Logger) *RankingsHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &RankingsHandlers{service: service, logger: logger}
}

// Register mounts the rankings routes on r.
func (h *RankingsHandlers) Register(r *mux.Router) {
	r.HandleFunc("/strategies", h.ListStrategies).Methods(http.MethodGet)
	r.HandleFunc("/strategies/{strategyID}", h.GetStrategy).Methods(http.MethodGet)
	r.HandleFunc("/strategies/{strategyID}/rankings", h.GetRankings).Methods(http.MethodGet)
	r.HandleFunc("/strategies/{strategyID}/count", h.GetCount).Methods(http.MethodGet)
	r.HandleFunc("/strategies/{strategyID}/ranks/{handle}", h.GetRank).Methods(http.MethodGet)
	r.HandleFunc("/profiles/{handle}/ranks", h.GetProfileRanks).Methods(http.MethodGet)
	r.HandleFunc("/profiles/{handle}/suggestions", h.GetSuggestions).Methods(http.MethodGet)
}

// ListStrategies handles GET /strategies.
func (h *RankingsHandlers) ListStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, strategy.All())
}

// GetStrategy handles GET /strategies/{strategyID}. Only catalog entries are found.
func (h *RankingsHandlers) GetStrategy(w http.ResponseWriter, r *http.Request) {
	s, ok := strategy.Lookup(mux.Vars(r)["strategyID"])
	if !ok {
		writeErrorCode(w, r, ErrCodeNotFound, "Strategy not found")
		return
	}
	writeJSON(w, r, http.StatusOK, s)
}

// GetRankings handles GET /strategies/{strategyID}/rankings?page=N.
func (h *RankingsHandlers) GetRankings(w http.ResponseWriter, r *http.Request) {
	strategyID, ok := h.strategyID(w, r)
	if !ok {
		return
	}
	page, ok := h.page(w, r)
	if !ok {
		return
	}

	profiles, err := h.service.GlobalRankings(r.Context(), strategyID, page)
	if err != nil {
		h.upstreamFailed(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, RankingsResponse{
		StrategyID: strategyID,
		Page:       page,
		PerPage:    h.service.PerPage(),
		Profiles:   nonNil(profiles),
	})
}

// GetCount handles GET /strategies/{strategyID}/count.
func (h *RankingsHandlers) GetCount(w http.ResponseWriter, r *http.Request) {
	strategyID, ok := h.strategyID(w, r)
	if !ok {
		return
	}

	count, err := h.service.RankingsCount(r.Context(), strategyID)
	if err != nil {
		h.upstreamFailed(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, CountResponse{
		StrategyID: strategyID,
		Count:      count,
		Pages:      pageCount(count, h.service.PerPage()),
	})
}

// GetRank handles GET /strategies/{strategyID}/ranks/{handle}.
func (h *RankingsHandlers) GetRank(w http.ResponseWriter, r *http.Request) {
	strategyID, ok := h.strategyID(w, r)
	if !ok {
		return
	}
	handle, ok := h.handle(w, r)
	if !ok {
		return
	}

	rank, found, err := h.service.GlobalRankByHandle(r.Context(), strategyID, handle)
	if err != nil {
		h.upstreamFailed(w, r, err)
		return
	}
	if !found {
		writeErrorCode(w, r, ErrCodeNotFound, "Handle does not exist")
		return
	}

	writeJSON(w, r, http.StatusOK, RankResponse{
		Handle:     handle,
		StrategyID: strategyID,
		Rank:       rank,
	})
}

// GetProfileRanks handles GET /profiles/{handle}/ranks. The rank under each
// catalog strategy is fetched concurrently; any upstream failure fails the
// whole request.
func (h *RankingsHandlers) GetProfileRanks(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.handle(w, r)
	if !ok {
		return
	}

	strategies := strategy.All()
	ctx, endSpan := tracing.StartSpan(r.Context(), "profile_ranks")
	tracing.SetAttributes(ctx, attribute.Int("lensrank.strategies", len(strategies)))

	ranks := make([]StrategyRank, len(strategies))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range strategies {
		i, s := i, s
		ranks[i] = StrategyRank{StrategyID: s.ID, Strategy: s.Name}
		g.Go(func() error {
			rank, found, err := h.service.GlobalRankByHandle(gctx, s.ID, handle)
			if err != nil {
				return err
			}
			if found {
				ranks[i].Rank = &rank
			}
			return nil
		})
	}
	err := g.Wait()
	endSpan(err)
	if err != nil {
		h.upstreamFailed(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, ProfileRanksResponse{Handle: handle, Ranks: ranks})
}

// GetSuggestions handles GET /profiles/{handle}/suggestions?page=N.
// An unknown handle yields an empty list.
func (h *RankingsHandlers) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.handle(w, r)
	if !ok {
		return
	}
	page, ok := h.page(w, r)
	if !ok {
		return
	}

	profiles, err := h.service.PersonalisedRankings(r.Context(), handle, page)
	if err != nil {
		h.upstreamFailed(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, SuggestionsResponse{
		Handle:   handle,
		Page:     page,
		Profiles: nonNil(profiles),
	})
}

func (h *RankingsHandlers) strategyID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := validate.StrategyID(mux.Vars(r)["strategyID"])
	if err != nil {
		writeErrorCode(w, r, ErrCodeValidation, "Invalid strategy id: "+err.Error())
		return "", false
	}
	return id, true
}

func (h *RankingsHandlers) handle(w http.ResponseWriter, r *http.Request) (string, bool) {
	handle, err := validate.Handle(mux.Vars(r)["handle"])
	if err != nil {
		writeErrorCode(w, r, ErrCodeValidation, "Invalid handle: "+err.Error())
		return "", false
	}
	return handle, true
}

func (h *RankingsHandlers) page(w http.ResponseWriter, r *http.Request) (int, bool) {
	page, err := validate.Page(r.URL.Query().Get("page"))
	if err != nil {
		writeErrorCode(w, r, ErrCodeValidation, err.Error())
		return 0, false
	}
	return page, true
}

// upstreamFailed maps a client error to a gateway response. The message is
// the client's operation-named message; upstream bodies are never echoed.
func (h *RankingsHandlers) upstreamFailed(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WarnContext(r.Context(), "rankings request failed",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.String("error", err.Error()))

	var reqErr *rankings.RequestError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		writeErrorCode(w, r, ErrCodeUpstreamTimeout, "Rankings service timed out")
	case errors.As(err, &reqErr):
		writeErrorCode(w, r, ErrCodeUpstream, reqErr.Error())
	case errors.Is(err, rankings.ErrDecode):
		writeErrorCode(w, r, ErrCodeUpstream, "Unexpected response from rankings service")
	default:
		writeErrorCode(w, r, ErrCodeUpstream, "Rankings service unavailable")
	}
}

func pageCount(count, perPage int) int {
	if count <= 0 || perPage <= 0 {
		return 0
	}
	return (count + perPage - 1) / perPage
}

func nonNil(profiles []rankings.Profile) []rankings.Profile {
	if profiles == nil {
		return []rankings.Profile{}
	}
	return profiles
}
