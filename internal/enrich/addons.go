package enrich

import (
	"context"
	"encoding/json"
	"fmt"

	"voicehub-platform/internal/calls"
	"voicehub-platform/internal/lookup"
)

// Addon is an optional per-tenant data-enrichment step. Results are
// cached per (tenant, addon, call) and never recomputed while cached.
type Addon interface {
	Name() string
	Run(ctx context.Context, call calls.CallRecord) (json.RawMessage, error)
}

// PhoneInsightsAddon augments a call with carrier and line-type data
// for the caller's number.
type PhoneInsightsAddon struct {
	Lookup *lookup.Client
}

func (a *PhoneInsightsAddon) Name() string { return "phone_insights" }

func (a *PhoneInsightsAddon) Run(ctx context.Context, call calls.CallRecord) (json.RawMessage, error) {
	if !a.Lookup.Enabled() {
		return nil, fmt.Errorf("line lookup is not configured")
	}
	info := a.Lookup.Resolve(ctx, call.CustomerNumber)
	if info == (lookup.CallerInfo{}) {
		return nil, fmt.Errorf("no line data for %s", call.CustomerNumber)
	}
	return json.Marshal(info)
}
