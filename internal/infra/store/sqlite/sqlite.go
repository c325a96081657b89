// Package sqlite is the persistent store adapter backed by modernc.org/sqlite.
// The donation ledger carries a unique index on the external transaction id;
// that index is the storage-level authority for idempotent ingestion even if
// the in-process per-key locking is ever bypassed.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/givepulse/givepulse/internal/domain"
)

// DB wraps the SQLite handle and implements domain.DonationStore and
// domain.CampaignStore.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Serialized writes: SQLite locks the whole file anyway.
	db.SetMaxOpenConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying handle.
func (d *DB) Close() error { return d.db.Close() }

// Migrations returns the schema statements. Each string is a single SQL
// statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS donations (
			id               TEXT PRIMARY KEY,
			external_txn_id  TEXT NOT NULL,
			external_sub_id  TEXT NOT NULL DEFAULT '',
			amount           INTEGER NOT NULL,
			currency         TEXT NOT NULL,
			donor            TEXT NOT NULL DEFAULT '',
			recurring        INTEGER NOT NULL DEFAULT 0,
			campaign_id      TEXT NOT NULL,
			status           TEXT NOT NULL,
			created_at       TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_donations_external_txn
			ON donations(external_txn_id)`,
		`CREATE INDEX IF NOT EXISTS idx_donations_campaign ON donations(campaign_id)`,

		`CREATE TABLE IF NOT EXISTS campaigns (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			goal_amount   INTEGER NOT NULL,
			raised_amount INTEGER NOT NULL DEFAULT 0,
			donor_count   INTEGER NOT NULL DEFAULT 0,
			active        INTEGER NOT NULL DEFAULT 1
		)`,

		// One row per milestone, ordered by idx ascending threshold.
		`CREATE TABLE IF NOT EXISTS milestones (
			campaign_id  TEXT NOT NULL,
			idx          INTEGER NOT NULL,
			percentage   INTEGER NOT NULL DEFAULT 0,
			amount       INTEGER NOT NULL DEFAULT 0,
			triggered    INTEGER NOT NULL DEFAULT 0,
			actions_json TEXT NOT NULL DEFAULT '{}',
			PRIMARY KEY (campaign_id, idx)
		)`,
	}
}

func (d *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ─── DonationStore ──────────────────────────────────────────────────────────

func (d *DB) GetByExternalTxn(ctx context.Context, txnID string) (*domain.Donation, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, external_txn_id, external_sub_id, amount, currency, donor,
		       recurring, campaign_id, status, created_at
		FROM donations WHERE external_txn_id = ?
	`, txnID)
	don, err := scanDonation(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrDonationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get donation: %w", err)
	}
	return don, nil
}

func (d *DB) Insert(ctx context.Context, don *domain.Donation) error {
	recurring := 0
	if don.Recurring {
		recurring = 1
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO donations (id, external_txn_id, external_sub_id, amount,
			currency, donor, recurring, campaign_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, don.ID, don.ExternalTxnID, don.ExternalSubID, don.Amount, don.Currency,
		don.Donor, recurring, don.CampaignID, string(don.Status),
		don.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		// The unique index turns a lost duplicate race into a clean
		// already-recorded outcome.
		if existing, gerr := d.GetByExternalTxn(ctx, don.ExternalTxnID); gerr == nil && existing.Status == domain.DonationCompleted {
			return domain.ErrDonationExists
		}
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}

func (d *DB) ListByCampaign(ctx context.Context, campaignID string) ([]domain.Donation, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, external_txn_id, external_sub_id, amount, currency, donor,
		       recurring, campaign_id, status, created_at
		FROM donations WHERE campaign_id = ? ORDER BY created_at
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()
	return collectDonations(rows)
}

func (d *DB) ListCompleted(ctx context.Context) ([]domain.Donation, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, external_txn_id, external_sub_id, amount, currency, donor,
		       recurring, campaign_id, status, created_at
		FROM donations WHERE status = ? ORDER BY created_at
	`, string(domain.DonationCompleted))
	if err != nil {
		return nil, fmt.Errorf("list completed donations: %w", err)
	}
	defer rows.Close()
	return collectDonations(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonation(r rowScanner) (*domain.Donation, error) {
	var don domain.Donation
	var recurring int
	var status, createdAt string
	err := r.Scan(&don.ID, &don.ExternalTxnID, &don.ExternalSubID, &don.Amount,
		&don.Currency, &don.Donor, &recurring, &don.CampaignID, &status, &createdAt)
	if err != nil {
		return nil, err
	}
	don.Recurring = recurring == 1
	don.Status = domain.DonationStatus(status)
	don.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &don, nil
}

func collectDonations(rows *sql.Rows) ([]domain.Donation, error) {
	var out []domain.Donation
	for rows.Next() {
		don, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		out = append(out, *don)
	}
	return out, rows.Err()
}

// ─── CampaignStore ──────────────────────────────────────────────────────────

func (d *DB) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	var c domain.Campaign
	var active int
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, goal_amount, raised_amount, donor_count, active
		FROM campaigns WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.GoalAmount, &c.RaisedAmount, &c.DonorCount, &active)
	if err == sql.ErrNoRows {
		return nil, domain.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	c.Active = active == 1

	ms, err := d.milestones(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Milestones = ms
	return &c, nil
}

func (d *DB) Put(ctx context.Context, c *domain.Campaign) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put campaign: %w", err)
	}
	defer tx.Rollback()

	active := 0
	if c.Active {
		active = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO campaigns (id, name, goal_amount, raised_amount, donor_count, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name          = excluded.name,
			goal_amount   = excluded.goal_amount,
			raised_amount = excluded.raised_amount,
			donor_count   = excluded.donor_count,
			active        = excluded.active
	`, c.ID, c.Name, c.GoalAmount, c.RaisedAmount, c.DonorCount, active)
	if err != nil {
		return fmt.Errorf("put campaign: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM milestones WHERE campaign_id = ?`, c.ID); err != nil {
		return fmt.Errorf("put campaign milestones: %w", err)
	}
	for i, m := range c.Milestones {
		actions, err := json.Marshal(m.Actions)
		if err != nil {
			return fmt.Errorf("marshal milestone actions: %w", err)
		}
		triggered := 0
		if m.Triggered {
			triggered = 1
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO milestones (campaign_id, idx, percentage, amount, triggered, actions_json)
			VALUES (?, ?, ?, ?, ?, ?)
		`, c.ID, i, m.Percentage, m.Amount, triggered, string(actions))
		if err != nil {
			return fmt.Errorf("put campaign milestones: %w", err)
		}
	}
	return tx.Commit()
}

func (d *DB) List(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id FROM campaigns ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan campaign id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Campaign, 0, len(ids))
	for _, id := range ids {
		c, err := d.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func (d *DB) ApplyDonation(ctx context.Context, campaignID string, amount int64) (*domain.Campaign, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE campaigns
		SET raised_amount = raised_amount + ?, donor_count = donor_count + 1
		WHERE id = ?
	`, amount, campaignID)
	if err != nil {
		return nil, fmt.Errorf("apply donation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, domain.ErrCampaignNotFound
	}
	return d.Get(ctx, campaignID)
}

func (d *DB) SetMilestoneTriggered(ctx context.Context, campaignID string, index int) (bool, error) {
	// Compare-and-set: the WHERE triggered = 0 guard makes the flip
	// observable by exactly one writer, even across processes.
	res, err := d.db.ExecContext(ctx, `
		UPDATE milestones SET triggered = 1
		WHERE campaign_id = ? AND idx = ? AND triggered = 0
	`, campaignID, index)
	if err != nil {
		return false, fmt.Errorf("set milestone triggered: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 1 {
		return true, nil
	}

	// No row flipped: already triggered, or the milestone does not exist.
	var exists int
	err = d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM milestones WHERE campaign_id = ? AND idx = ?
	`, campaignID, index).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("set milestone triggered: %w", err)
	}
	if exists == 0 {
		return false, fmt.Errorf("milestone %d not found for campaign %s", index, campaignID)
	}
	return false, nil
}

func (d *DB) milestones(ctx context.Context, campaignID string) ([]domain.Milestone, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT percentage, amount, triggered, actions_json
		FROM milestones WHERE campaign_id = ? ORDER BY idx
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	defer rows.Close()

	var out []domain.Milestone
	for rows.Next() {
		var m domain.Milestone
		var triggered int
		var actions string
		if err := rows.Scan(&m.Percentage, &m.Amount, &triggered, &actions); err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		m.Triggered = triggered == 1
		if err := json.Unmarshal([]byte(actions), &m.Actions); err != nil {
			return nil, fmt.Errorf("unmarshal milestone actions: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
