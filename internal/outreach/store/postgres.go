package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"outreach_backend/internal/outreach/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leadColumns = `id, first_name, last_name, email, phone, status, claimed_by, claim_expires_at, version, created_at, updated_at`

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) InsertLead(ctx context.Context, params InsertLeadParams) (domain.Lead, error) {
	var lead domain.Lead
	err := s.pool.QueryRow(ctx, `
		INSERT INTO outreach_leads (first_name, last_name, email, phone, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+leadColumns,
		params.FirstName, params.LastName, params.Email, params.Phone, string(domain.StatusNew),
	).Scan(leadDest(&lead)...)
	if err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

func (s *Postgres) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	var lead domain.Lead
	err := s.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM outreach_leads
		WHERE id = $1
	`, id).Scan(leadDest(&lead)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

func (s *Postgres) FindEligible(ctx context.Context, statuses []domain.LeadStatus, now time.Time, limit int) ([]domain.Lead, error) {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM outreach_leads
		WHERE status = ANY($1)
		  AND (claim_expires_at IS NULL OR claim_expires_at < $2)
		ORDER BY created_at ASC
		LIMIT $3
	`, values, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0, limit)
	for rows.Next() {
		var lead domain.Lead
		if err := rows.Scan(leadDest(&lead)...); err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return leads, nil
}

func (s *Postgres) ConditionalUpdate(ctx context.Context, leadID uuid.UUID, expectedVersion int64, set LeadUpdate) (bool, error) {
	assignments := []string{"version = version + 1", "updated_at = now()"}
	args := []any{leadID, expectedVersion}

	if set.Status != nil {
		args = append(args, string(*set.Status))
		assignments = append(assignments, fmt.Sprintf("status = $%d", len(args)))
	}
	if set.ClaimedBy != nil {
		args = append(args, *set.ClaimedBy)
		assignments = append(assignments, fmt.Sprintf("claimed_by = $%d", len(args)))
	}
	if set.ClaimExpiresAt != nil {
		args = append(args, *set.ClaimExpiresAt)
		assignments = append(assignments, fmt.Sprintf("claim_expires_at = $%d", len(args)))
	}
	if set.ClearClaim {
		assignments = append(assignments, "claimed_by = ''", "claim_expires_at = NULL")
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE outreach_leads
		SET `+strings.Join(assignments, ", ")+`
		WHERE id = $1 AND version = $2
	`, args...)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}

func (s *Postgres) ExpireStaleClaims(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE outreach_leads l
		SET status = CASE
				WHEN EXISTS (
					SELECT 1 FROM outreach_touches t
					WHERE t.lead_id = l.id AND t.outcome = 'sent'
				) THEN 'touched'
				ELSE 'new'
			END,
			claimed_by = '',
			claim_expires_at = NULL,
			version = version + 1,
			updated_at = now()
		WHERE l.status = 'processing'
		  AND l.claim_expires_at IS NOT NULL
		  AND l.claim_expires_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Postgres) AppendTouch(ctx context.Context, touch domain.Touch) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO outreach_touches (id, lead_id, channel, outcome, provider_id, detail, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, touch.ID, touch.LeadID, string(touch.Channel), string(touch.Outcome), touch.ProviderID, touch.Detail, touch.At)
	return err
}

func (s *Postgres) RecentSent(ctx context.Context, leadID uuid.UUID, channel domain.Channel, within time.Duration, now time.Time) (*domain.Touch, error) {
	var touch domain.Touch
	var ch, outcome string
	err := s.pool.QueryRow(ctx, `
		SELECT id, lead_id, channel, outcome, provider_id, detail, at
		FROM outreach_touches
		WHERE lead_id = $1 AND channel = $2 AND outcome = 'sent' AND at > $3
		ORDER BY at DESC
		LIMIT 1
	`, leadID, string(channel), now.Add(-within)).Scan(
		&touch.ID, &touch.LeadID, &ch, &outcome, &touch.ProviderID, &touch.Detail, &touch.At,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	touch.Channel = domain.Channel(ch)
	touch.Outcome = domain.Outcome(outcome)
	return &touch, nil
}

func (s *Postgres) HasPermanentFailure(ctx context.Context, leadID uuid.UUID, channel domain.Channel) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM outreach_touches
			WHERE lead_id = $1 AND channel = $2 AND outcome = 'failed_permanent'
		)
	`, leadID, string(channel)).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Postgres) CampaignState(ctx context.Context) (domain.CampaignState, error) {
	var state string
	err := s.pool.QueryRow(ctx, `
		SELECT state FROM outreach_campaign WHERE id = 1
	`).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CampaignWorking, nil
	}
	if err != nil {
		return "", err
	}
	return domain.CampaignState(state), nil
}

func (s *Postgres) SetCampaignState(ctx context.Context, state domain.CampaignState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO outreach_campaign (id, state) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()
	`, string(state))
	return err
}

func (s *Postgres) CountByStatus(ctx context.Context) (map[domain.LeadStatus]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM outreach_leads GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.LeadStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[domain.LeadStatus(status)] = count
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return counts, nil
}

// leadDest builds the scan destinations matching leadColumns order.
func leadDest(lead *domain.Lead) []any {
	return []any{
		&lead.ID, &lead.FirstName, &lead.LastName, &lead.Email, &lead.Phone,
		(*string)(&lead.Status), &lead.ClaimedBy, &lead.ClaimExpiresAt,
		&lead.Version, &lead.CreatedAt, &lead.UpdatedAt,
	}
}
