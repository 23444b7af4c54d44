package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/store"
)

const commitAttempts = 3

// CommitSale locks the sold products, re-checks their stock and writes the
// stock decrements together with the receipt in one serializable
// transaction. Serialization conflicts with another terminal are retried.
func (s *Store) CommitSale(ctx context.Context, receipt domain.Receipt) (*domain.Receipt, error) {
	if receipt.ID == "" || len(receipt.Lines) == 0 {
		return nil, store.ErrInvalidRecord
	}

	var err error
	for attempt := 0; attempt < commitAttempts; attempt++ {
		err = s.commitSale(ctx, receipt)
		if !isSerializationFailure(err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	committed := receipt.Clone()
	return &committed, nil
}

func (s *Store) commitSale(ctx context.Context, receipt domain.Receipt) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	lineIDs := make([]string, 0, len(receipt.Lines))
	for _, line := range receipt.Lines {
		if !slices.Contains(lineIDs, line.Product.ID) {
			lineIDs = append(lineIDs, line.Product.ID)
		}
	}
	slices.Sort(lineIDs)

	// Rows are locked in id order so two terminals selling overlapping
	// products cannot deadlock.
	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, stock
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, lineIDs)
	if err != nil {
		return err
	}
	type stockRow struct {
		name  string
		stock int
	}
	locked := make(map[string]stockRow, len(lineIDs))
	for rows.Next() {
		var id string
		var row stockRow
		if err := rows.Scan(&id, &row.name, &row.stock); err != nil {
			_ = rows.Close()
			return err
		}
		locked[id] = row
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, id := range lineIDs {
		if _, ok := locked[id]; !ok {
			return fmt.Errorf("product %s: %w", id, store.ErrNotFound)
		}
	}

	demand := receipt.StockDemand()
	demandIDs := make([]string, 0, len(demand))
	for id := range demand {
		demandIDs = append(demandIDs, id)
	}
	slices.Sort(demandIDs)

	for _, id := range demandIDs {
		row := locked[id]
		if row.stock < demand[id] {
			return &domain.StockError{
				ProductID:   id,
				ProductName: row.name,
				Available:   row.stock,
				Requested:   demand[id],
			}
		}
	}
	for _, id := range demandIDs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1
		`, id, demand[id]); err != nil {
			return err
		}
	}

	if err := insertReceipt(ctx, tx, receipt); err != nil {
		return err
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertReceipt(ctx context.Context, db execer, receipt domain.Receipt) error {
	payload, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO receipts (id, subtotal, discount_applied, total, profit, payment_method, payload, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, receipt.ID, receipt.Subtotal, receipt.DiscountApplied, receipt.Total, receipt.Profit,
		receipt.PaymentMethod, payload, receipt.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) AppendReceipt(ctx context.Context, receipt domain.Receipt) error {
	if receipt.ID == "" {
		return store.ErrInvalidRecord
	}
	return insertReceipt(ctx, s.db, receipt)
}

func (s *Store) RecentReceipts(ctx context.Context, limit int) ([]domain.Receipt, error) {
	query := `SELECT payload FROM receipts ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	return s.queryReceipts(ctx, query, args...)
}

func (s *Store) ListReceipts(ctx context.Context, from time.Time, to time.Time) ([]domain.Receipt, error) {
	return s.queryReceipts(ctx, `
		SELECT payload FROM receipts
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC, id ASC
	`, from.UTC(), to.UTC())
}

func (s *Store) queryReceipts(ctx context.Context, query string, args ...any) ([]domain.Receipt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	receipts := make([]domain.Receipt, 0, 32)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var receipt domain.Receipt
		if err := json.Unmarshal(payload, &receipt); err != nil {
			return nil, fmt.Errorf("decode receipt: %w", err)
		}
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return receipts, nil
}
