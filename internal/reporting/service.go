// Package reporting serves the dashboard's read side: call lists,
// call detail, in-flight calls and keyword summaries, all read-through
// cached per tenant.
package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"voicehub-platform/internal/cache"
	"voicehub-platform/internal/calls"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
	dashboardTopN   = 10
)

type Service struct {
	records calls.Repository
	cache   cache.Store
	log     *slog.Logger
}

func NewService(records calls.Repository, store cache.Store, log *slog.Logger) *Service {
	return &Service{records: records, cache: store, log: log}
}

// CallPage is one page of the tenant's call history.
type CallPage struct {
	Calls  []calls.CallRecord `json:"calls"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// KeywordStat is one aggregated transcript keyword.
type KeywordStat struct {
	Keyword          string  `json:"keyword"`
	Mentions         int     `json:"mentions"`
	AverageSentiment float64 `json:"average_sentiment"`
}

// Dashboard is the summary view the dashboard home renders.
type Dashboard struct {
	ActiveCalls int           `json:"active_calls"`
	TopKeywords []KeywordStat `json:"top_keywords"`
}

func (s *Service) ListCalls(ctx context.Context, tenantID string, limit, offset int) (CallPage, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	key := cache.Key(cache.NamespaceCallList, tenantID, strconv.Itoa(limit), strconv.Itoa(offset))
	var page CallPage
	if s.cached(ctx, key, &page) {
		return page, nil
	}

	recs, err := s.records.ListCallRecords(ctx, tenantID, limit, offset)
	if err != nil {
		return CallPage{}, fmt.Errorf("list calls: %w", err)
	}
	page = CallPage{Calls: recs, Limit: limit, Offset: offset}
	s.store(ctx, key, cache.NamespaceCallList, page)
	return page, nil
}

func (s *Service) GetCall(ctx context.Context, tenantID, id string) (calls.CallRecord, error) {
	key := cache.Key(cache.NamespaceCallDetail, tenantID, id)
	var rec calls.CallRecord
	if s.cached(ctx, key, &rec) {
		return rec, nil
	}

	rec, err := s.records.GetCallRecord(ctx, tenantID, id)
	if err != nil {
		return calls.CallRecord{}, err
	}
	s.store(ctx, key, cache.NamespaceCallDetail, rec)
	return rec, nil
}

func (s *Service) ActiveCalls(ctx context.Context, tenantID string) ([]calls.ActiveCall, error) {
	key := cache.Key(cache.NamespaceActiveCalls, tenantID)
	var active []calls.ActiveCall
	if s.cached(ctx, key, &active) {
		return active, nil
	}

	active, err := s.records.ListActiveCalls(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active calls: %w", err)
	}
	s.store(ctx, key, cache.NamespaceActiveCalls, active)
	return active, nil
}

func (s *Service) GetDashboard(ctx context.Context, tenantID string) (Dashboard, error) {
	key := cache.Key(cache.NamespaceDashboard, tenantID)
	var d Dashboard
	if s.cached(ctx, key, &d) {
		return d, nil
	}

	active, err := s.records.ListActiveCalls(ctx, tenantID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard active calls: %w", err)
	}
	counters, err := s.records.TopKeywords(ctx, tenantID, dashboardTopN)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard keywords: %w", err)
	}

	d = Dashboard{ActiveCalls: len(active), TopKeywords: make([]KeywordStat, 0, len(counters))}
	for _, k := range counters {
		d.TopKeywords = append(d.TopKeywords, KeywordStat{
			Keyword:          k.Keyword,
			Mentions:         k.Mentions,
			AverageSentiment: k.SentimentAverage(),
		})
	}
	s.store(ctx, key, cache.NamespaceDashboard, d)
	return d, nil
}

// cached loads key into out, treating every cache failure as a miss.
func (s *Service) cached(ctx context.Context, key string, out any) bool {
	payload, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	if !hit {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		s.log.Warn("cache payload unreadable, dropping", "key", key, "error", err)
		_ = s.cache.Delete(ctx, key)
		return false
	}
	return true
}

func (s *Service) store(ctx context.Context, key string, ns cache.Namespace, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("cache payload marshal failed", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, payload, ns.TTL()); err != nil {
		s.log.Warn("cache write failed", "key", key, "error", err)
	}
}
