package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("calls: not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")
)

// Repository is the persistence contract for call records and active calls.
//
// Implementations MUST enforce tenant filtering on every read and write.
type Repository interface {
	// InsertCallRecord persists a new record. Replayed provider events are
	// deduplicated on provider_call_id; inserted reports whether a new row
	// was written.
	InsertCallRecord(ctx context.Context, rec CallRecord) (inserted bool, err error)
	GetCallRecord(ctx context.Context, tenantID, id string) (CallRecord, error)
	ListCallRecords(ctx context.Context, tenantID string, limit, offset int) ([]CallRecord, error)
	UpdateEnrichment(ctx context.Context, tenantID, id string, upd EnrichmentUpdate) error

	UpsertActiveCall(ctx context.Context, ac ActiveCall) error
	DeleteActiveCall(ctx context.Context, tenantID, providerCallID string) error
	ListActiveCalls(ctx context.Context, tenantID string) ([]ActiveCall, error)
	DeleteStaleActiveCalls(ctx context.Context, olderThan time.Time) (int64, error)

	UpsertKeyword(ctx context.Context, tenantID, keyword string, mentions int, sentiment float64, now time.Time) error
	TopKeywords(ctx context.Context, tenantID string, limit int) ([]KeywordCounter, error)
}

// SQLRepo implements Repository on Postgres via database/sql.
type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) InsertCallRecord(ctx context.Context, rec CallRecord) (bool, error) {
	if rec.TenantID == "" || rec.ID == "" || rec.CustomerNumber == "" {
		return false, ErrInvalidArgument
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO call_records (
			id, provider_call_id, tenant_id, line_number, customer_number,
			recording_url, ended_reason, summary, transcript,
			structured_data, raw_payload, duration_seconds,
			analysis_completed, started_at, ended_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$16)
		ON CONFLICT (provider_call_id) DO NOTHING`,
		rec.ID, rec.ProviderCallID, rec.TenantID, rec.LineNumber, rec.CustomerNumber,
		rec.RecordingURL, rec.EndedReason, rec.Summary, rec.Transcript,
		nullJSON(rec.StructuredData), nullJSON(rec.RawPayload), rec.DurationSeconds,
		rec.AnalysisCompleted, rec.StartedAt, rec.EndedAt, rec.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const callRecordColumns = `
	id, provider_call_id, tenant_id, line_number, customer_number,
	recording_url, ended_reason, summary, transcript,
	structured_data, raw_payload, duration_seconds,
	COALESCE(intent,''), COALESCE(sentiment,''), COALESCE(outcome,''),
	COALESCE(appointment_date,''), COALESCE(appointment_time,''),
	COALESCE(appointment_type,''), COALESCE(appointment_notes,''),
	COALESCE(customer_name,''), COALESCE(customer_email,''),
	analysis_completed, started_at, ended_at, created_at, updated_at`

func scanCallRecord(row interface{ Scan(...any) error }) (CallRecord, error) {
	var rec CallRecord
	var structured, raw []byte
	err := row.Scan(
		&rec.ID, &rec.ProviderCallID, &rec.TenantID, &rec.LineNumber, &rec.CustomerNumber,
		&rec.RecordingURL, &rec.EndedReason, &rec.Summary, &rec.Transcript,
		&structured, &raw, &rec.DurationSeconds,
		&rec.Intent, &rec.Sentiment, &rec.Outcome,
		&rec.AppointmentDate, &rec.AppointmentTime,
		&rec.AppointmentType, &rec.AppointmentNotes,
		&rec.CustomerName, &rec.CustomerEmail,
		&rec.AnalysisCompleted, &rec.StartedAt, &rec.EndedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return CallRecord{}, err
	}
	rec.StructuredData = structured
	rec.RawPayload = raw
	return rec, nil
}

func (r *SQLRepo) GetCallRecord(ctx context.Context, tenantID, id string) (CallRecord, error) {
	if tenantID == "" || id == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+callRecordColumns+` FROM call_records WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	rec, err := scanCallRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, ErrNotFound
	}
	return rec, err
}

func (r *SQLRepo) ListCallRecords(ctx context.Context, tenantID string, limit, offset int) ([]CallRecord, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+callRecordColumns+` FROM call_records
		 WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallRecord, 0, limit)
	for rows.Next() {
		rec, err := scanCallRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLRepo) UpdateEnrichment(ctx context.Context, tenantID, id string, upd EnrichmentUpdate) error {
	if tenantID == "" || id == "" {
		return ErrInvalidArgument
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE call_records SET
			intent = $3, sentiment = $4, outcome = $5,
			appointment_date = $6, appointment_time = $7,
			appointment_type = $8, appointment_notes = $9,
			customer_name = $10, customer_email = $11,
			analysis_completed = TRUE, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
		upd.Intent, upd.Sentiment, upd.Outcome,
		upd.AppointmentDate, upd.AppointmentTime,
		upd.AppointmentType, upd.AppointmentNotes,
		upd.CustomerName, upd.CustomerEmail,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepo) UpsertActiveCall(ctx context.Context, ac ActiveCall) error {
	if ac.TenantID == "" || ac.ProviderCallID == "" {
		return ErrInvalidArgument
	}
	if ac.CreatedAt.IsZero() {
		ac.CreatedAt = time.Now().UTC()
	}
	if ac.UpdatedAt.IsZero() {
		ac.UpdatedAt = ac.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO active_calls (
			tenant_id, provider_call_id, customer_number,
			caller_name, carrier, line_type, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (tenant_id, provider_call_id) DO UPDATE SET
			customer_number = EXCLUDED.customer_number,
			caller_name = CASE WHEN EXCLUDED.caller_name <> '' THEN EXCLUDED.caller_name ELSE active_calls.caller_name END,
			carrier = CASE WHEN EXCLUDED.carrier <> '' THEN EXCLUDED.carrier ELSE active_calls.carrier END,
			line_type = CASE WHEN EXCLUDED.line_type <> '' THEN EXCLUDED.line_type ELSE active_calls.line_type END,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		ac.TenantID, ac.ProviderCallID, ac.CustomerNumber,
		ac.CallerName, ac.Carrier, ac.LineType, ac.Status, ac.CreatedAt, ac.UpdatedAt,
	)
	return err
}

func (r *SQLRepo) DeleteActiveCall(ctx context.Context, tenantID, providerCallID string) error {
	if tenantID == "" || providerCallID == "" {
		return ErrInvalidArgument
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM active_calls WHERE tenant_id = $1 AND provider_call_id = $2`,
		tenantID, providerCallID)
	return err
}

func (r *SQLRepo) ListActiveCalls(ctx context.Context, tenantID string) ([]ActiveCall, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT tenant_id, provider_call_id, customer_number,
		       caller_name, carrier, line_type, status, created_at, updated_at
		FROM active_calls WHERE tenant_id = $1 ORDER BY created_at DESC`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActiveCall
	for rows.Next() {
		var ac ActiveCall
		if err := rows.Scan(
			&ac.TenantID, &ac.ProviderCallID, &ac.CustomerNumber,
			&ac.CallerName, &ac.Carrier, &ac.LineType, &ac.Status,
			&ac.CreatedAt, &ac.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, ac)
	}
	return out, rows.Err()
}

func (r *SQLRepo) DeleteStaleActiveCalls(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM active_calls WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLRepo) UpsertKeyword(ctx context.Context, tenantID, keyword string, mentions int, sentiment float64, now time.Time) error {
	if tenantID == "" || keyword == "" || mentions <= 0 {
		return ErrInvalidArgument
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO keyword_counters (
			tenant_id, keyword, mentions, sentiment_total, sentiment_samples, updated_at
		) VALUES ($1,$2,$3,$4,1,$5)
		ON CONFLICT (tenant_id, keyword) DO UPDATE SET
			mentions = keyword_counters.mentions + EXCLUDED.mentions,
			sentiment_total = keyword_counters.sentiment_total + EXCLUDED.sentiment_total,
			sentiment_samples = keyword_counters.sentiment_samples + 1,
			updated_at = EXCLUDED.updated_at`,
		tenantID, keyword, mentions, sentiment, now,
	)
	return err
}

func (r *SQLRepo) TopKeywords(ctx context.Context, tenantID string, limit int) ([]KeywordCounter, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT tenant_id, keyword, mentions, sentiment_total, sentiment_samples, updated_at
		FROM keyword_counters WHERE tenant_id = $1
		ORDER BY mentions DESC, keyword ASC LIMIT $2`,
		tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KeywordCounter
	for rows.Next() {
		var k KeywordCounter
		if err := rows.Scan(&k.TenantID, &k.Keyword, &k.Mentions, &k.SentimentTotal, &k.SentimentSamples, &k.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}
