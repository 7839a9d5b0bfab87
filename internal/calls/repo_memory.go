package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and early development.
// It enforces tenant isolation and mirrors the dedup/upsert semantics of the
// SQL implementation.
type MemoryRepo struct {
	mu sync.Mutex

	records  map[string]CallRecord // keyed by provider_call_id
	active   map[string]ActiveCall // keyed by tenant|provider_call_id
	keywords map[string]KeywordCounter
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		records:  map[string]CallRecord{},
		active:   map[string]ActiveCall{},
		keywords: map[string]KeywordCounter{},
	}
}

func (r *MemoryRepo) InsertCallRecord(ctx context.Context, rec CallRecord) (bool, error) {
	if rec.TenantID == "" || rec.ID == "" || rec.CustomerNumber == "" {
		return false, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.ProviderCallID]; exists {
		return false, nil
	}
	rec.UpdatedAt = rec.CreatedAt
	r.records[rec.ProviderCallID] = rec
	return true, nil
}

func (r *MemoryRepo) GetCallRecord(ctx context.Context, tenantID, id string) (CallRecord, error) {
	if tenantID == "" || id == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.TenantID == tenantID && rec.ID == id {
			return rec, nil
		}
	}
	return CallRecord{}, ErrNotFound
}

func (r *MemoryRepo) ListCallRecords(ctx context.Context, tenantID string, limit, offset int) ([]CallRecord, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []CallRecord
	for _, rec := range r.records {
		if rec.TenantID == tenantID {
			all = append(all, rec)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []CallRecord{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *MemoryRepo) UpdateEnrichment(ctx context.Context, tenantID, id string, upd EnrichmentUpdate) error {
	if tenantID == "" || id == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, rec := range r.records {
		if rec.TenantID != tenantID || rec.ID != id {
			continue
		}
		rec.Intent = upd.Intent
		rec.Sentiment = upd.Sentiment
		rec.Outcome = upd.Outcome
		rec.AppointmentDate = upd.AppointmentDate
		rec.AppointmentTime = upd.AppointmentTime
		rec.AppointmentType = upd.AppointmentType
		rec.AppointmentNotes = upd.AppointmentNotes
		rec.CustomerName = upd.CustomerName
		rec.CustomerEmail = upd.CustomerEmail
		rec.AnalysisCompleted = true
		rec.UpdatedAt = time.Now().UTC()
		r.records[key] = rec
		return nil
	}
	return ErrNotFound
}

func activeKey(tenantID, providerCallID string) string {
	return tenantID + "|" + providerCallID
}

func (r *MemoryRepo) UpsertActiveCall(ctx context.Context, ac ActiveCall) error {
	if ac.TenantID == "" || ac.ProviderCallID == "" {
		return ErrInvalidArgument
	}
	if ac.CreatedAt.IsZero() {
		ac.CreatedAt = time.Now().UTC()
	}
	if ac.UpdatedAt.IsZero() {
		ac.UpdatedAt = ac.CreatedAt
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := activeKey(ac.TenantID, ac.ProviderCallID)
	if prev, ok := r.active[key]; ok {
		ac.CreatedAt = prev.CreatedAt
		if ac.CallerName == "" {
			ac.CallerName = prev.CallerName
		}
		if ac.Carrier == "" {
			ac.Carrier = prev.Carrier
		}
		if ac.LineType == "" {
			ac.LineType = prev.LineType
		}
	}
	r.active[key] = ac
	return nil
}

func (r *MemoryRepo) DeleteActiveCall(ctx context.Context, tenantID, providerCallID string) error {
	if tenantID == "" || providerCallID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, activeKey(tenantID, providerCallID))
	return nil
}

func (r *MemoryRepo) ListActiveCalls(ctx context.Context, tenantID string) ([]ActiveCall, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ActiveCall
	for _, ac := range r.active {
		if ac.TenantID == tenantID {
			out = append(out, ac)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) DeleteStaleActiveCalls(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, ac := range r.active {
		if ac.CreatedAt.Before(olderThan) {
			delete(r.active, key)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) UpsertKeyword(ctx context.Context, tenantID, keyword string, mentions int, sentiment float64, now time.Time) error {
	if tenantID == "" || keyword == "" || mentions <= 0 {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tenantID + "|" + keyword
	k := r.keywords[key]
	k.TenantID = tenantID
	k.Keyword = keyword
	k.Mentions += mentions
	k.SentimentTotal += sentiment
	k.SentimentSamples++
	k.UpdatedAt = now
	r.keywords[key] = k
	return nil
}

func (r *MemoryRepo) TopKeywords(ctx context.Context, tenantID string, limit int) ([]KeywordCounter, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []KeywordCounter
	for _, k := range r.keywords {
		if k.TenantID == tenantID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mentions != out[j].Mentions {
			return out[i].Mentions > out[j].Mentions
		}
		return out[i].Keyword < out[j].Keyword
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
