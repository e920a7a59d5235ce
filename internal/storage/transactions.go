package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/model"
	"github.com/Veraticus/spice-sms/internal/service"
)

const transactionColumns = `id, sms_id, amount_minor, raw_merchant, normalized_merchant, bank_name,
	transaction_date, raw_sms_body, confidence_score, is_debit, category_id, created_at, updated_at`

// InsertTransaction inserts txn unless a row with the same message id exists.
func (s *SQLiteStorage) InsertTransaction(ctx context.Context, txn *model.Transaction) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateTransaction(txn); err != nil {
		return false, err
	}

	now := s.now()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	if txn.UpdatedAt.IsZero() {
		txn.UpdatedAt = txn.CreatedAt
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			sms_id, amount_minor, raw_merchant, normalized_merchant, bank_name,
			transaction_date, raw_sms_body, confidence_score, is_debit, category_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.MessageID,
		toMinor(txn.Amount),
		txn.MerchantRaw,
		txn.MerchantNormalized,
		txn.BankName,
		toMillis(txn.TransactionDate),
		txn.RawBody,
		txn.Confidence,
		txn.IsDebit,
		txn.CategoryID,
		toMillis(txn.CreatedAt),
		toMillis(txn.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert transaction %s: %w", txn.MessageID, classifyError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return true, fmt.Errorf("failed to get inserted id: %w", err)
	}
	txn.ID = id

	return true, nil
}

// HasMessage reports whether a transaction already exists for messageID.
func (s *SQLiteStorage) HasMessage(ctx context.Context, messageID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(messageID, "messageID"); err != nil {
		return false, err
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM transactions WHERE sms_id = ?)
	`, messageID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check message %s: %w", messageID, err)
	}
	return exists, nil
}

// GetTransactionByMessageID retrieves the transaction created from messageID.
func (s *SQLiteStorage) GetTransactionByMessageID(ctx context.Context, messageID string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE sms_id = ?`, messageID)
	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// FindSimilarTransactions returns transactions inside the merchant/bank/amount/date window of q.
func (s *SQLiteStorage) FindSimilarTransactions(ctx context.Context, q service.SimilarQuery) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if q.To.Before(q.From) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, q.To, q.From)
	}

	return s.queryTransactions(ctx, s.db, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE normalized_merchant = ?
		  AND bank_name = ?
		  AND amount_minor BETWEEN ? AND ?
		  AND transaction_date BETWEEN ? AND ?
		ORDER BY transaction_date DESC
	`, q.Merchant, q.Bank, toMinor(q.MinAmount), toMinor(q.MaxAmount), toMillis(q.From), toMillis(q.To))
}

// DeleteTransaction deletes a transaction by id.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %d: %w", id, classifyError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrNotFound
	}
	return nil
}

// GetAllTransactions returns every stored transaction, newest first.
func (s *SQLiteStorage) GetAllTransactions(ctx context.Context) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryTransactions(ctx, s.db, `
		SELECT `+transactionColumns+`
		FROM transactions
		ORDER BY transaction_date DESC, id DESC
	`)
}

// GetTransactionsByDateRange returns transactions dated within [start, end], newest first.
func (s *SQLiteStorage) GetTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, end, start)
	}
	return s.queryTransactions(ctx, s.db, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE transaction_date >= ? AND transaction_date <= ?
		ORDER BY transaction_date DESC, id DESC
	`, toMillis(start), toMillis(end))
}

// GetTransactionCount returns the number of stored transactions.
func (s *SQLiteStorage) GetTransactionCount(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// UpdateTransactionCategoryForMerchant re-tags every transaction of merchant.
func (s *SQLiteStorage) UpdateTransactionCategoryForMerchant(ctx context.Context, merchant string, categoryID int64) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(merchant, "merchant"); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET category_id = ?, updated_at = ?
		WHERE normalized_merchant = ?
	`, categoryID, toMillis(s.now()), merchant)
	if err != nil {
		return 0, fmt.Errorf("failed to update transaction categories: %w", classifyError(err))
	}

	return result.RowsAffected()
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, q queryable, query string, args ...any) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}

	return transactions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn                        model.Transaction
		amountMinor                int64
		date, createdAt, updatedAt int64
	)
	err := row.Scan(
		&txn.ID,
		&txn.MessageID,
		&amountMinor,
		&txn.MerchantRaw,
		&txn.MerchantNormalized,
		&txn.BankName,
		&date,
		&txn.RawBody,
		&txn.Confidence,
		&txn.IsDebit,
		&txn.CategoryID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Amount = fromMinor(amountMinor)
	txn.TransactionDate = fromMillis(date)
	txn.CreatedAt = fromMillis(createdAt)
	txn.UpdatedAt = fromMillis(updatedAt)
	return &txn, nil
}

// toMinor stores amounts as integer paise so range queries stay exact.
func toMinor(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
