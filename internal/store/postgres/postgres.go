package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"stockmaster/console/internal/domain"
	"stockmaster/console/internal/store"
	"stockmaster/console/internal/xid"
)

const schema = `
	CREATE TABLE IF NOT EXISTS console_audit_logs (
		id          TEXT PRIMARY KEY,
		actor_id    TEXT NOT NULL,
		actor_name  TEXT NOT NULL,
		actor_role  TEXT NOT NULL,
		action      TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id   TEXT NOT NULL,
		detail      TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS console_audit_logs_created_at_idx
		ON console_audit_logs (created_at DESC);
`

// AuditLog persists the console's operator audit trail.
type AuditLog struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*AuditLog, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &AuditLog{db: db}
	if err := a.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate audit log: %w", err)
	}
	return a, nil
}

func (a *AuditLog) migrate(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, schema)
	return err
}

func (a *AuditLog) Close() error {
	return a.db.Close()
}

func (a *AuditLog) Record(ctx context.Context, entry domain.AuditEntry) error {
	if entry.Action == "" || entry.ActorID == "" {
		return store.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO console_audit_logs (
			id, actor_id, actor_name, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.ActorID, entry.ActorName, string(entry.ActorRole), entry.Action,
		entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: audit entry %s already recorded", store.ErrInvalidInput, entry.ID)
		}
		return err
	}
	return nil
}

// List returns the newest entries first.
func (a *AuditLog) List(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_name, actor_role, action, entity_type, entity_id, detail, created_at
		FROM console_audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0, limit)
	for rows.Next() {
		var (
			entry domain.AuditEntry
			role  string
		)
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ActorName, &role, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.ActorRole = domain.Role(role)
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
