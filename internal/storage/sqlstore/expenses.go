package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mmynk/sharedledger/internal/models"
	"github.com/mmynk/sharedledger/internal/recurrence"
	"github.com/mmynk/sharedledger/internal/storage"
)

const expenseColumns = `id, group_id, expense_date, title, category_id, amount,
	original_amount, original_currency, conversion_rate, paid_by_id,
	is_reimbursement, split_mode, recurrence_rule, notes, created_at`

// CreateExpense persists a new expense with its splits and documents. A
// recurring expense also gets its first pending link.
func (s *Store) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = s.newID()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = s.now()
	}
	applyDefaults(expense)

	return s.withTx(ctx, func(c conn) error {
		if err := c.checkParticipants(ctx, expense); err != nil {
			return err
		}
		if err := c.insertExpense(ctx, expense); err != nil {
			return err
		}
		if err := c.insertSplits(ctx, expense.ID, expense.PaidFor); err != nil {
			return err
		}
		if err := c.upsertDocuments(ctx, expense.ID, expense.Documents, s.newID); err != nil {
			return err
		}

		if expense.RecurrenceRule.Recurring() {
			link := &models.RecurrenceLink{
				ID:                    s.newID(),
				GroupID:               expense.GroupID,
				CurrentFrameExpenseID: expense.ID,
				NextExpenseDate:       recurrence.Advance(expense.RecurrenceRule, expense.ExpenseDate),
			}
			if err := c.insertLink(ctx, link); err != nil {
				return err
			}
			expense.Link = link
		}
		return nil
	})
}

// UpdateExpense replaces an expense's fields, splits and documents.
//
// Only a pending link follows the edit: turning recurrence off deletes it,
// changing the rule or the date moves its due date. An expense without a
// link gets one when recurrence is turned on. Closed links are left alone.
func (s *Store) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	applyDefaults(expense)

	return s.withTx(ctx, func(c conn) error {
		existing, err := c.getExpenseRow(ctx, expense.ID)
		if err != nil {
			return err
		}
		if existing.GroupID != expense.GroupID {
			return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
		}
		if err := c.checkParticipants(ctx, expense); err != nil {
			return err
		}

		_, err = c.exec(ctx,
			`UPDATE expenses SET expense_date = ?, title = ?, category_id = ?, amount = ?,
			 original_amount = ?, original_currency = ?, conversion_rate = ?, paid_by_id = ?,
			 is_reimbursement = ?, split_mode = ?, recurrence_rule = ?, notes = ?
			 WHERE id = ? AND group_id = ?`,
			toUnix(expense.ExpenseDate), expense.Title, expense.CategoryID, expense.Amount,
			nullInt64(expense.OriginalAmount), nullString(expense.OriginalCurrency), expense.ConversionRate,
			expense.PaidByID, expense.IsReimbursement, string(expense.SplitMode),
			string(expense.RecurrenceRule), nullString(expense.Notes),
			expense.ID, expense.GroupID,
		)
		if err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
		expense.CreatedAt = existing.CreatedAt

		if err := c.replaceSplits(ctx, expense.ID, expense.PaidFor); err != nil {
			return err
		}
		if err := c.replaceDocuments(ctx, expense.ID, expense.Documents, s.newID); err != nil {
			return err
		}

		link, err := c.getLinkByFrame(ctx, expense.ID)
		if err != nil {
			return err
		}

		switch {
		case link != nil && link.Pending() && !expense.RecurrenceRule.Recurring():
			if err := c.deletePendingLink(ctx, link.ID); err != nil {
				return err
			}
			link = nil
		case link != nil && link.Pending() &&
			(existing.RecurrenceRule != expense.RecurrenceRule || toUnix(existing.ExpenseDate) != toUnix(expense.ExpenseDate)):
			link.NextExpenseDate = recurrence.Advance(expense.RecurrenceRule, expense.ExpenseDate)
			if err := c.updatePendingLinkDate(ctx, link.ID, link.NextExpenseDate); err != nil {
				return err
			}
		case link == nil && expense.RecurrenceRule.Recurring():
			link = &models.RecurrenceLink{
				ID:                    s.newID(),
				GroupID:               expense.GroupID,
				CurrentFrameExpenseID: expense.ID,
				NextExpenseDate:       recurrence.Advance(expense.RecurrenceRule, expense.ExpenseDate),
			}
			if err := c.insertLink(ctx, link); err != nil {
				return err
			}
		}
		expense.Link = link
		return nil
	})
}

// DeleteExpense removes an expense from a group.
func (s *Store) DeleteExpense(ctx context.Context, groupID, expenseID string) error {
	res, err := s.exec(ctx, "DELETE FROM expenses WHERE id = ? AND group_id = ?", expenseID, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return nil
}

// GetExpense retrieves an expense with its splits, documents and link.
func (s *Store) GetExpense(ctx context.Context, groupID, expenseID string) (*models.Expense, error) {
	expense, err := s.getExpenseRow(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense.GroupID != groupID {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}

	if expense.PaidFor, err = s.loadSplits(ctx, expenseID); err != nil {
		return nil, err
	}
	if expense.Documents, err = s.loadDocuments(ctx, expenseID); err != nil {
		return nil, err
	}
	expense.DocumentCount = len(expense.Documents)
	if expense.Link, err = s.getLinkByFrame(ctx, expenseID); err != nil {
		return nil, err
	}

	return expense, nil
}

// ListGroupExpenses lists a group's expenses ordered by expense date and
// creation time, newest first.
func (s *Store) ListGroupExpenses(ctx context.Context, groupID string, opts storage.ListOptions) ([]models.Expense, error) {
	query := "SELECT " + expenseColumns + " FROM expenses WHERE group_id = ?"
	args := []any{groupID}
	if opts.Filter != "" {
		query += " AND LOWER(title) LIKE ?"
		args = append(args, "%"+strings.ToLower(opts.Filter)+"%")
	}
	query += " ORDER BY expense_date DESC, created_at DESC, id"

	limit := opts.Limit
	if limit <= 0 && opts.Offset > 0 {
		limit = math.MaxInt32
	}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, opts.Offset)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	rows.Close()

	if len(expenses) == 0 {
		return expenses, nil
	}

	ids := make([]any, len(expenses))
	index := make(map[string]int, len(expenses))
	for i, e := range expenses {
		ids[i] = e.ID
		index[e.ID] = i
	}

	splitRows, err := s.query(ctx,
		"SELECT expense_id, participant_id, shares FROM expense_splits WHERE expense_id IN ("+
			placeholders(len(ids))+") ORDER BY participant_id",
		ids...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer splitRows.Close()

	for splitRows.Next() {
		var sp models.ExpenseSplit
		if err := splitRows.Scan(&sp.ExpenseID, &sp.ParticipantID, &sp.Shares); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		e := &expenses[index[sp.ExpenseID]]
		e.PaidFor = append(e.PaidFor, sp)
	}
	if err := splitRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}

	countRows, err := s.query(ctx,
		"SELECT expense_id, COUNT(*) FROM expense_documents WHERE expense_id IN ("+
			placeholders(len(ids))+") GROUP BY expense_id",
		ids...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	defer countRows.Close()

	for countRows.Next() {
		var expenseID string
		var count int
		if err := countRows.Scan(&expenseID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan document count: %w", err)
		}
		expenses[index[expenseID]].DocumentCount = count
	}
	if err := countRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate document counts: %w", err)
	}

	return expenses, nil
}

func applyDefaults(expense *models.Expense) {
	if expense.SplitMode == "" {
		expense.SplitMode = models.SplitEvenly
	}
	if expense.RecurrenceRule == "" {
		expense.RecurrenceRule = models.RuleNone
	}
}

// checkParticipants verifies the payer and every split participant belong
// to the expense's group.
func (c conn) checkParticipants(ctx context.Context, expense *models.Expense) error {
	group, err := c.getGroup(ctx, expense.GroupID)
	if err != nil {
		return err
	}
	for _, id := range expense.ParticipantIDs() {
		if !group.HasParticipant(id) {
			return fmt.Errorf("%s: %w", id, storage.ErrInvalidParticipant)
		}
	}
	return nil
}

func (c conn) insertExpense(ctx context.Context, e *models.Expense) error {
	_, err := c.exec(ctx,
		"INSERT INTO expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.GroupID, toUnix(e.ExpenseDate), e.Title, e.CategoryID, e.Amount,
		nullInt64(e.OriginalAmount), nullString(e.OriginalCurrency), e.ConversionRate, e.PaidByID,
		e.IsReimbursement, string(e.SplitMode), string(e.RecurrenceRule), nullString(e.Notes),
		toUnix(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	return nil
}

func (c conn) insertSplits(ctx context.Context, expenseID string, splits []models.ExpenseSplit) error {
	for _, sp := range splits {
		_, err := c.exec(ctx,
			"INSERT INTO expense_splits (expense_id, participant_id, shares) VALUES (?, ?, ?)",
			expenseID, sp.ParticipantID, sp.Shares,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}
	return nil
}

// replaceSplits upserts the given splits and drops the ones not listed.
func (c conn) replaceSplits(ctx context.Context, expenseID string, splits []models.ExpenseSplit) error {
	keep := make([]any, 0, len(splits)+1)
	keep = append(keep, expenseID)

	for _, sp := range splits {
		_, err := c.exec(ctx,
			`INSERT INTO expense_splits (expense_id, participant_id, shares) VALUES (?, ?, ?)
			 ON CONFLICT (expense_id, participant_id) DO UPDATE SET shares = excluded.shares`,
			expenseID, sp.ParticipantID, sp.Shares,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert split: %w", err)
		}
		keep = append(keep, sp.ParticipantID)
	}

	query := "DELETE FROM expense_splits WHERE expense_id = ?"
	if len(keep) > 1 {
		query += " AND participant_id NOT IN (" + placeholders(len(keep)-1) + ")"
	}
	if _, err := c.exec(ctx, query, keep...); err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}
	return nil
}

func (c conn) upsertDocuments(ctx context.Context, expenseID string, docs []models.Document, newID func() string) error {
	for i := range docs {
		d := &docs[i]
		if d.ID == "" {
			d.ID = newID()
		}
		d.ExpenseID = expenseID

		_, err := c.exec(ctx,
			`INSERT INTO expense_documents (id, url, width, height, expense_id) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET url = excluded.url, width = excluded.width,
			 height = excluded.height, expense_id = excluded.expense_id`,
			d.ID, d.URL, d.Width, d.Height, expenseID,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert document: %w", err)
		}
	}
	return nil
}

// replaceDocuments upserts the given documents and deletes the expense's
// other documents.
func (c conn) replaceDocuments(ctx context.Context, expenseID string, docs []models.Document, newID func() string) error {
	if err := c.upsertDocuments(ctx, expenseID, docs, newID); err != nil {
		return err
	}

	args := make([]any, 0, len(docs)+1)
	args = append(args, expenseID)
	for _, d := range docs {
		args = append(args, d.ID)
	}

	query := "DELETE FROM expense_documents WHERE expense_id = ?"
	if len(docs) > 0 {
		query += " AND id NOT IN (" + placeholders(len(docs)) + ")"
	}
	if _, err := c.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

func (c conn) getExpenseRow(ctx context.Context, expenseID string) (*models.Expense, error) {
	row := c.queryRow(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", expenseID)
	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

func (c conn) loadSplits(ctx context.Context, expenseID string) ([]models.ExpenseSplit, error) {
	rows, err := c.query(ctx,
		"SELECT expense_id, participant_id, shares FROM expense_splits WHERE expense_id = ? ORDER BY participant_id",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	var splits []models.ExpenseSplit
	for rows.Next() {
		var sp models.ExpenseSplit
		if err := rows.Scan(&sp.ExpenseID, &sp.ParticipantID, &sp.Shares); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}

func (c conn) loadDocuments(ctx context.Context, expenseID string) ([]models.Document, error) {
	rows, err := c.query(ctx,
		"SELECT id, url, width, height, expense_id FROM expense_documents WHERE expense_id = ? ORDER BY id",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		var owner sql.NullString
		if err := rows.Scan(&d.ID, &d.URL, &d.Width, &d.Height, &owner); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.ExpenseID = owner.String
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

func scanExpense(row rowScanner) (*models.Expense, error) {
	e := &models.Expense{}
	var expenseDate, createdAt int64
	var originalAmount sql.NullInt64
	var originalCurrency, notes sql.NullString
	var splitMode, rule string

	err := row.Scan(
		&e.ID, &e.GroupID, &expenseDate, &e.Title, &e.CategoryID, &e.Amount,
		&originalAmount, &originalCurrency, &e.ConversionRate, &e.PaidByID,
		&e.IsReimbursement, &splitMode, &rule, &notes, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	e.ExpenseDate = fromUnix(expenseDate)
	e.CreatedAt = fromUnix(createdAt)
	if originalAmount.Valid {
		v := originalAmount.Int64
		e.OriginalAmount = &v
	}
	e.OriginalCurrency = originalCurrency.String
	e.Notes = notes.String
	e.SplitMode = models.SplitMode(splitMode)
	e.RecurrenceRule = models.RecurrenceRule(rule)
	return e, nil
}
