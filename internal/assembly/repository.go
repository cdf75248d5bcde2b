package assembly

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateBatch(ctx context.Context, batch *Batch) error
	GetBatch(ctx context.Context, id string) (*Batch, error)
	ListBatches(ctx context.Context, limit int) ([]*Batch, error)
	UpdateBatchResult(ctx context.Context, id, status, outputPath, downloadRef, errorMsg string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateBatch(ctx context.Context, b *Batch) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO batches (id, status, clip_count, output_path, download_ref, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.Status, b.ClipCount, nullString(b.OutputPath), nullString(b.DownloadRef),
		nullString(b.Error), b.CreatedAt.Format(time.RFC3339), b.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetBatch(ctx context.Context, id string) (*Batch, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, status, clip_count, output_path, download_ref, error, created_at, updated_at
		FROM batches WHERE id = ?
	`, id)
	return r.scanBatch(row)
}

func (r *SQLiteRepository) scanBatch(row *sql.Row) (*Batch, error) {
	var b Batch
	var outputPath, downloadRef, errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&b.ID, &b.Status, &b.ClipCount, &outputPath, &downloadRef, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b.OutputPath = outputPath.String
	b.DownloadRef = downloadRef.String
	b.Error = errMsg.String
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &b, nil
}

func (r *SQLiteRepository) ListBatches(ctx context.Context, limit int) ([]*Batch, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, status, clip_count, output_path, download_ref, error, created_at, updated_at
		FROM batches ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		var b Batch
		var outputPath, downloadRef, errMsg sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&b.ID, &b.Status, &b.ClipCount, &outputPath, &downloadRef, &errMsg, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		b.OutputPath = outputPath.String
		b.DownloadRef = downloadRef.String
		b.Error = errMsg.String
		b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		batches = append(batches, &b)
	}
	return batches, rows.Err()
}

func (r *SQLiteRepository) UpdateBatchResult(ctx context.Context, id, status, outputPath, downloadRef, errorMsg string) error {
	// Timestamps are written from Go in RFC3339 so scans parse them back;
	// sqlite's datetime('now') produces a different layout.
	_, err := r.db.ExecContext(ctx, `
		UPDATE batches SET status = ?, output_path = ?, download_ref = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, status, nullString(outputPath), nullString(downloadRef), nullString(errorMsg),
		time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
