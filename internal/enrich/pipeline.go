// Package enrich derives intent, sentiment, keywords and optional
// appointment details from completed calls. It runs strictly after the
// call record exists and every step is failure-isolated: one step
// failing never stops the others.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"voicehub-platform/internal/cache"
	"voicehub-platform/internal/calls"
	"voicehub-platform/internal/outbound"
	"voicehub-platform/internal/tenants"
	"voicehub-platform/pkg/utils"
)

const (
	// llmCapPerTenant bounds concurrent completion calls per tenant.
	// The cap is advisory: if redis is down or the slot never frees,
	// enrichment proceeds anyway.
	llmCapPerTenant = 3
	llmCapTTL       = 2 * time.Minute

	intentScheduling = "Scheduling"
)

// EventDispatcher is the slice of the outbound dispatcher the pipeline
// needs for the scheduling trigger.
type EventDispatcher interface {
	Dispatch(ctx context.Context, tenantID string, p outbound.Payload)
}

type Pipeline struct {
	records    calls.Repository
	tenants    tenants.Repository
	classifier *Classifier
	dispatcher EventDispatcher
	cache      cache.Store
	rdb        *redis.Client
	addons     []Addon
	log        *slog.Logger
	clock      func() time.Time
}

func NewPipeline(
	records calls.Repository,
	tenantRepo tenants.Repository,
	classifier *Classifier,
	dispatcher EventDispatcher,
	store cache.Store,
	rdb *redis.Client,
	addons []Addon,
	log *slog.Logger,
) *Pipeline {
	return &Pipeline{
		records:    records,
		tenants:    tenantRepo,
		classifier: classifier,
		dispatcher: dispatcher,
		cache:      store,
		rdb:        rdb,
		addons:     addons,
		log:        log,
		clock:      time.Now,
	}
}

// EnrichCall runs the full pipeline for one call. The returned error
// aggregates step failures for the task runner's log line; partial
// progress is kept.
func (p *Pipeline) EnrichCall(ctx context.Context, tenantID, callID string) error {
	rec, err := p.records.GetCallRecord(ctx, tenantID, callID)
	if err != nil {
		return fmt.Errorf("load call %s: %w", callID, err)
	}

	settings, err := p.tenants.GetSettings(ctx, tenantID)
	if err != nil {
		p.log.Warn("tenant settings unavailable, enriching with defaults",
			"tenant_id", tenantID, "error", err)
		settings = tenants.Settings{TenantID: tenantID}
	}

	var stepErrs []error

	analysis := p.classify(ctx, tenantID, settings, rec)
	merged := mergeAnalysis(analysis, rec.StructuredData)

	if err := p.records.UpdateEnrichment(ctx, tenantID, rec.ID, merged.asUpdate()); err != nil {
		stepErrs = append(stepErrs, fmt.Errorf("write enrichment: %w", err))
	} else {
		// The detail view caches for minutes; drop it so the next read
		// sees the enriched record. List views expire on their own.
		if err := p.cache.Delete(ctx, cache.Key(cache.NamespaceCallDetail, tenantID, rec.ID)); err != nil {
			p.log.Warn("detail cache eviction failed", "tenant_id", tenantID, "call_id", rec.ID, "error", err)
		}
	}

	if err := p.updateKeywords(ctx, tenantID, rec.Transcript, merged.Sentiment); err != nil {
		stepErrs = append(stepErrs, err)
	}

	p.maybeTriggerScheduling(ctx, tenantID, rec, merged)

	if err := p.runAddons(ctx, tenantID, settings, rec); err != nil {
		stepErrs = append(stepErrs, err)
	}

	return errors.Join(stepErrs...)
}

// classify runs the LLM step when the tenant has a key configured.
// Classification failure degrades to the zero Analysis; the platform's
// own extracted fields still apply in the merge.
func (p *Pipeline) classify(ctx context.Context, tenantID string, settings tenants.Settings, rec calls.CallRecord) Analysis {
	if settings.LLMAPIKey == "" || (rec.Transcript == "" && rec.Summary == "") {
		return Analysis{}
	}

	release := p.acquireCap(ctx, tenantID)
	defer release()

	a, err := p.classifier.Classify(ctx, settings.LLMAPIKey, rec.Transcript, rec.Summary)
	if err != nil {
		p.log.Warn("call classification failed", "tenant_id", tenantID, "call_id", rec.ID, "error", err)
		return Analysis{}
	}
	return a
}

// acquireCap tries to take a per-tenant completion slot. It returns a
// release func; on any redis trouble or a persistently full cap the
// caller proceeds uncapped.
func (p *Pipeline) acquireCap(ctx context.Context, tenantID string) func() {
	if p.rdb == nil {
		return func() {}
	}
	key := "enrich:cap:" + tenantID
	for attempt := 0; attempt < 3; attempt++ {
		ok, err := utils.AcquireConcurrencyCap(ctx, p.rdb, key, llmCapPerTenant, llmCapTTL)
		if err != nil {
			p.log.Warn("concurrency cap unavailable", "tenant_id", tenantID, "error", err)
			return func() {}
		}
		if ok {
			return func() {
				if err := utils.ReleaseConcurrencyCap(context.WithoutCancel(ctx), p.rdb, key); err != nil {
					p.log.Warn("concurrency cap release failed", "tenant_id", tenantID, "error", err)
				}
			}
		}
		select {
		case <-ctx.Done():
			return func() {}
		case <-time.After(500 * time.Millisecond):
		}
	}
	p.log.Warn("concurrency cap still full, proceeding uncapped", "tenant_id", tenantID)
	return func() {}
}

func (p *Pipeline) updateKeywords(ctx context.Context, tenantID, transcript, sentiment string) error {
	score := sentimentScore(sentiment)
	now := p.clock()
	var errs []error
	for _, kw := range ExtractKeywords(transcript) {
		if err := p.records.UpsertKeyword(ctx, tenantID, kw.Word, kw.Count, score, now); err != nil {
			errs = append(errs, fmt.Errorf("keyword %q: %w", kw.Word, err))
		}
	}
	return errors.Join(errs...)
}

// maybeTriggerScheduling fires appointment.scheduled when the call
// resolved to a scheduling intent with a concrete date and time.
func (p *Pipeline) maybeTriggerScheduling(ctx context.Context, tenantID string, rec calls.CallRecord, a Analysis) {
	if a.Intent != intentScheduling || a.AppointmentDate == "" || a.AppointmentTime == "" {
		return
	}
	p.dispatcher.Dispatch(ctx, tenantID, outbound.Payload{
		Event:          outbound.EventAppointmentScheduled,
		CallID:         rec.ID,
		CustomerNumber: rec.CustomerNumber,
		Summary:        rec.Summary,
		Appointment: &outbound.AppointmentInfo{
			Date:  a.AppointmentDate,
			Time:  a.AppointmentTime,
			Type:  a.AppointmentType,
			Notes: a.AppointmentNotes,
		},
	})
}

// runAddons executes every addon the tenant enabled, caching results
// per (tenant, addon, call) so retries never pay twice.
func (p *Pipeline) runAddons(ctx context.Context, tenantID string, settings tenants.Settings, rec calls.CallRecord) error {
	enabled := map[string]struct{}{}
	for _, name := range settings.EnabledAddons {
		enabled[name] = struct{}{}
	}
	if len(enabled) == 0 {
		return nil
	}

	var errs []error
	for _, addon := range p.addons {
		if _, on := enabled[addon.Name()]; !on {
			continue
		}
		key := cache.Key(cache.NamespaceAddon, tenantID, addon.Name(), rec.ID)
		if _, hit, err := p.cache.Get(ctx, key); err == nil && hit {
			continue
		}
		payload, err := addon.Run(ctx, rec)
		if err != nil {
			errs = append(errs, fmt.Errorf("addon %s: %w", addon.Name(), err))
			continue
		}
		if err := p.cache.Set(ctx, key, payload, cache.NamespaceAddon.TTL()); err != nil {
			p.log.Warn("addon result not cached", "tenant_id", tenantID, "addon", addon.Name(), "error", err)
		}
	}
	return errors.Join(errs...)
}

// mergeAnalysis overlays the classifier's output with fields the voice
// platform extracted itself. Platform values win wherever both exist.
func mergeAnalysis(a Analysis, structured json.RawMessage) Analysis {
	if len(structured) == 0 {
		return a
	}
	var platform Analysis
	if err := json.Unmarshal(structured, &platform); err != nil {
		return a
	}
	overlay := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	overlay(&a.Intent, platform.Intent)
	overlay(&a.Sentiment, platform.Sentiment)
	overlay(&a.Outcome, platform.Outcome)
	overlay(&a.AppointmentDate, platform.AppointmentDate)
	overlay(&a.AppointmentTime, platform.AppointmentTime)
	overlay(&a.AppointmentType, platform.AppointmentType)
	overlay(&a.AppointmentNotes, platform.AppointmentNotes)
	overlay(&a.CustomerName, platform.CustomerName)
	overlay(&a.CustomerEmail, platform.CustomerEmail)
	return a
}

func (a Analysis) asUpdate() calls.EnrichmentUpdate {
	return calls.EnrichmentUpdate{
		Intent:           a.Intent,
		Sentiment:        a.Sentiment,
		Outcome:          a.Outcome,
		AppointmentDate:  a.AppointmentDate,
		AppointmentTime:  a.AppointmentTime,
		AppointmentType:  a.AppointmentType,
		AppointmentNotes: a.AppointmentNotes,
		CustomerName:     a.CustomerName,
		CustomerEmail:    a.CustomerEmail,
	}
}
