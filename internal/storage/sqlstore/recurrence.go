package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/sharedledger/internal/models"
	"github.com/mmynk/sharedledger/internal/storage"
)

const linkColumns = "id, group_id, current_frame_expense_id, next_expense_date, next_expense_created_at"

// ListDueLinks returns pending links whose next expense is due at now.
func (s *Store) ListDueLinks(ctx context.Context, groupID string, now time.Time) ([]models.RecurrenceLink, error) {
	query := `SELECT ` + linkColumns + ` FROM recurrence_links
		WHERE next_expense_created_at IS NULL AND next_expense_date <= ?`
	args := []any{toUnix(now)}
	if groupID != "" {
		query += " AND group_id = ?"
		args = append(args, groupID)
	}
	query += " ORDER BY next_expense_date, id"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list due links: %w", err)
	}
	defer rows.Close()

	var links []models.RecurrenceLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, *link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate links: %w", err)
	}

	return links, nil
}

// LoadFrame reads an expense with its splits and document IDs.
func (s *Store) LoadFrame(ctx context.Context, expenseID string) (*models.Frame, error) {
	expense, err := s.getExpenseRow(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	if expense.PaidFor, err = s.loadSplits(ctx, expenseID); err != nil {
		return nil, err
	}

	docs, err := s.loadDocuments(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	frame := &models.Frame{Expense: *expense}
	for _, d := range docs {
		frame.DocumentIDs = append(frame.DocumentIDs, d.ID)
	}
	return frame, nil
}

// txConn exposes the materialization writes of one transaction.
type txConn struct {
	conn
}

var _ storage.RecurrenceTx = (*txConn)(nil)

func (t *txConn) InsertExpense(ctx context.Context, expense *models.Expense) error {
	return t.insertExpense(ctx, expense)
}

func (t *txConn) InsertSplits(ctx context.Context, expenseID string, splits []models.ExpenseSplit) error {
	return t.insertSplits(ctx, expenseID, splits)
}

func (t *txConn) ReparentDocuments(ctx context.Context, documentIDs []string, expenseID string) error {
	if len(documentIDs) == 0 {
		return nil
	}

	args := make([]any, 0, len(documentIDs)+1)
	args = append(args, expenseID)
	for _, id := range documentIDs {
		args = append(args, id)
	}

	_, err := t.exec(ctx,
		"UPDATE expense_documents SET expense_id = ? WHERE id IN ("+placeholders(len(documentIDs))+")",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to reparent documents: %w", err)
	}
	return nil
}

func (t *txConn) InsertLink(ctx context.Context, link *models.RecurrenceLink) error {
	return t.insertLink(ctx, link)
}

func (t *txConn) CloseLink(ctx context.Context, linkID string, at time.Time) (int64, error) {
	res, err := t.exec(ctx,
		`UPDATE recurrence_links SET next_expense_created_at = ?
		 WHERE id = ? AND next_expense_created_at IS NULL`,
		toUnix(at), linkID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to close link: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func (c conn) insertLink(ctx context.Context, link *models.RecurrenceLink) error {
	_, err := c.exec(ctx,
		"INSERT INTO recurrence_links ("+linkColumns+") VALUES (?, ?, ?, ?, ?)",
		link.ID, link.GroupID, link.CurrentFrameExpenseID,
		toUnix(link.NextExpenseDate), nullUnix(link.NextExpenseCreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert link: %w", err)
	}
	return nil
}

// getLinkByFrame returns the link whose current frame is expenseID, or nil.
func (c conn) getLinkByFrame(ctx context.Context, expenseID string) (*models.RecurrenceLink, error) {
	row := c.queryRow(ctx,
		"SELECT "+linkColumns+" FROM recurrence_links WHERE current_frame_expense_id = ?",
		expenseID,
	)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

// updatePendingLinkDate moves the due date of a link that is still pending.
func (c conn) updatePendingLinkDate(ctx context.Context, linkID string, next time.Time) error {
	_, err := c.exec(ctx,
		`UPDATE recurrence_links SET next_expense_date = ?
		 WHERE id = ? AND next_expense_created_at IS NULL`,
		toUnix(next), linkID,
	)
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}
	return nil
}

// deletePendingLink removes a link that is still pending.
func (c conn) deletePendingLink(ctx context.Context, linkID string) error {
	_, err := c.exec(ctx,
		"DELETE FROM recurrence_links WHERE id = ? AND next_expense_created_at IS NULL",
		linkID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*models.RecurrenceLink, error) {
	link := &models.RecurrenceLink{}
	var nextDate int64
	var createdAt sql.NullInt64

	if err := row.Scan(&link.ID, &link.GroupID, &link.CurrentFrameExpenseID, &nextDate, &createdAt); err != nil {
		return nil, err
	}
	link.NextExpenseDate = fromUnix(nextDate)
	if createdAt.Valid {
		t := fromUnix(createdAt.Int64)
		link.NextExpenseCreatedAt = &t
	}
	return link, nil
}
