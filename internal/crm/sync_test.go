package crm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"voicehub-platform/internal/calls"
	"voicehub-platform/internal/tokenvault"
)

type fakeVault struct {
	err       error
	perConfig map[string]error
}

func (v *fakeVault) EnsureValidToken(ctx context.Context, tenantID string, cfg tokenvault.ProviderConfig) (tokenvault.Token, error) {
	if err, ok := v.perConfig[cfg.Name]; ok && err != nil {
		return tokenvault.Token{}, err
	}
	if v.err != nil {
		return tokenvault.Token{}, v.err
	}
	return tokenvault.Token{TenantID: tenantID, Provider: cfg.Name, AccessToken: "tok"}, nil
}

// fakeConnector is a plain connector without prospect creation.
type fakeConnector struct {
	name        string
	found       bool
	searchErr   error
	activityErr error
	activities  int
}

func (f *fakeConnector) Provider() string { return f.name }

func (f *fakeConnector) Config() tokenvault.ProviderConfig {
	return tokenvault.ProviderConfig{Name: f.name}
}

func (f *fakeConnector) SearchByPhone(ctx context.Context, tok tokenvault.Token, phone string) (RecordRef, bool, error) {
	if f.searchErr != nil {
		return RecordRef{}, false, f.searchErr
	}
	if !f.found {
		return RecordRef{}, false, nil
	}
	return RecordRef{ID: f.name + "-rec", Type: "Contact"}, true, nil
}

func (f *fakeConnector) CreateActivity(ctx context.Context, tok tokenvault.Token, ref RecordRef, a ActivitySummary) (string, error) {
	if f.activityErr != nil {
		return "", f.activityErr
	}
	f.activities++
	return f.name + "-activity", nil
}

// prospectingConnector also creates a prospect when nothing matches.
type prospectingConnector struct {
	fakeConnector
	prospects int
}

func (p *prospectingConnector) CreateProspect(ctx context.Context, tok tokenvault.Token, phone, name string) (RecordRef, error) {
	p.prospects++
	return RecordRef{ID: p.name + "-prospect", Type: "Lead"}, nil
}

func syncRecord() calls.CallRecord {
	ended := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	return calls.CallRecord{
		ID:             "rec-1",
		TenantID:       "t1",
		CustomerNumber: "+15551234567",
		CustomerName:   "Ada",
		Summary:        "asked about pricing",
		EndedAt:        &ended,
		CreatedAt:      ended.Add(-time.Minute),
	}
}

func TestSyncCall_Success(t *testing.T) {
	logs := NewMemorySyncLogStore()
	conn := &fakeConnector{name: ProviderHubSpot, found: true}
	s := NewSyncer(&fakeVault{}, logs, conn)

	s.SyncCall(context.Background(), syncRecord())

	rows := logs.All(ProviderHubSpot)
	if len(rows) != 1 {
		t.Fatalf("log rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.Status != SyncSuccess || row.CRMRecordID != "hubspot-rec" {
		t.Fatalf("row = %+v", row)
	}
	if conn.activities != 1 {
		t.Fatalf("activities = %d", conn.activities)
	}
}

func TestSyncCall_NotConnectedIsSkipped(t *testing.T) {
	logs := NewMemorySyncLogStore()
	s := NewSyncer(&fakeVault{err: tokenvault.ErrNotConnected}, logs, &fakeConnector{name: ProviderPipedrive})

	s.SyncCall(context.Background(), syncRecord())

	rows := logs.All(ProviderPipedrive)
	if len(rows) != 1 || rows[0].Status != SyncSkipped {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].ErrorText != "integration not connected" {
		t.Fatalf("error text = %q", rows[0].ErrorText)
	}
}

func TestSyncCall_NoMatchWithoutProspectCreator(t *testing.T) {
	logs := NewMemorySyncLogStore()
	conn := &fakeConnector{name: ProviderHubSpot, found: false}
	s := NewSyncer(&fakeVault{}, logs, conn)

	s.SyncCall(context.Background(), syncRecord())

	rows := logs.All(ProviderHubSpot)
	if len(rows) != 1 || rows[0].Status != SyncSkipped {
		t.Fatalf("rows = %+v", rows)
	}
	if conn.activities != 0 {
		t.Fatal("no activity without a matched record")
	}
}

func TestSyncCall_NoMatchCreatesProspect(t *testing.T) {
	logs := NewMemorySyncLogStore()
	conn := &prospectingConnector{fakeConnector: fakeConnector{name: ProviderSalesforce, found: false}}
	s := NewSyncer(&fakeVault{}, logs, conn)

	s.SyncCall(context.Background(), syncRecord())

	rows := logs.All(ProviderSalesforce)
	if len(rows) != 1 || rows[0].Status != SyncSuccess {
		t.Fatalf("rows = %+v", rows)
	}
	if conn.prospects != 1 || conn.activities != 1 {
		t.Fatalf("prospects = %d, activities = %d", conn.prospects, conn.activities)
	}
	if rows[0].CRMRecordID != "salesforce-prospect" {
		t.Fatalf("crm record id = %q", rows[0].CRMRecordID)
	}
}

func TestSyncCall_OneConnectorFailingDoesNotStopOthers(t *testing.T) {
	logs := NewMemorySyncLogStore()
	bad := &fakeConnector{name: ProviderSalesforce, searchErr: errors.New("api down")}
	good := &fakeConnector{name: ProviderHubSpot, found: true}
	s := NewSyncer(&fakeVault{}, logs, bad, good)

	s.SyncCall(context.Background(), syncRecord())

	if rows := logs.All(ProviderSalesforce); len(rows) != 1 || rows[0].Status != SyncError {
		t.Fatalf("salesforce rows = %+v", rows)
	}
	if rows := logs.All(ProviderHubSpot); len(rows) != 1 || rows[0].Status != SyncSuccess {
		t.Fatalf("hubspot rows = %+v", rows)
	}
}

func TestSyncCall_ActivityErrorProducesErrorRow(t *testing.T) {
	logs := NewMemorySyncLogStore()
	conn := &fakeConnector{name: ProviderHubSpot, found: true, activityErr: errors.New("rate limited")}
	s := NewSyncer(&fakeVault{}, logs, conn)

	s.SyncCall(context.Background(), syncRecord())

	rows := logs.All(ProviderHubSpot)
	if len(rows) != 1 || rows[0].Status != SyncError {
		t.Fatalf("rows = %+v", rows)
	}
	// The matched record is still recorded for diagnosis.
	if rows[0].CRMRecordID != "hubspot-rec" {
		t.Fatalf("crm record id = %q", rows[0].CRMRecordID)
	}
}

func TestPickOccurredAt(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC) }
	started := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	ended := started.Add(time.Minute)

	rec := calls.CallRecord{StartedAt: &started, EndedAt: &ended}
	if got := pickOccurredAt(rec, now); !got.Equal(ended) {
		t.Fatalf("got %v, want ended", got)
	}
	rec.EndedAt = nil
	if got := pickOccurredAt(rec, now); !got.Equal(started) {
		t.Fatalf("got %v, want started", got)
	}
	rec.StartedAt = nil
	if got := pickOccurredAt(rec, now); !got.Equal(now()) {
		t.Fatalf("got %v, want clock", got)
	}
}

// panickyConnector blows up mid-search, as a buggy connector might.
type panickyConnector struct {
	fakeConnector
}

func (p *panickyConnector) SearchByPhone(ctx context.Context, tok tokenvault.Token, phone string) (RecordRef, bool, error) {
	panic("nil pointer in search")
}

func TestSyncCall_PanickingConnectorStillLogsAndSiblingsRun(t *testing.T) {
	logs := NewMemorySyncLogStore()
	bad := &panickyConnector{fakeConnector: fakeConnector{name: ProviderSalesforce}}
	good := &fakeConnector{name: ProviderHubSpot, found: true}
	s := NewSyncer(&fakeVault{}, logs, bad, good)

	s.SyncCall(context.Background(), syncRecord())

	rows := logs.All(ProviderSalesforce)
	if len(rows) != 1 || rows[0].Status != SyncError {
		t.Fatalf("salesforce rows = %+v", rows)
	}
	if !strings.Contains(rows[0].ErrorText, "nil pointer in search") {
		t.Fatalf("error text = %q", rows[0].ErrorText)
	}
	if rows := logs.All(ProviderHubSpot); len(rows) != 1 || rows[0].Status != SyncSuccess {
		t.Fatalf("hubspot rows = %+v", rows)
	}
}
