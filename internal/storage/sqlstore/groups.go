package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/sharedledger/internal/models"
	"github.com/mmynk/sharedledger/internal/storage"
)

// CreateGroup persists a new group and its participants.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	// Generate IDs if not set
	if group.ID == "" {
		group.ID = s.newID()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = s.now()
	}
	if group.Currency == "" {
		group.Currency = "$"
	}

	return s.withTx(ctx, func(c conn) error {
		_, err := c.exec(ctx,
			`INSERT INTO groups (id, name, information, currency, currency_code, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			group.ID, group.Name, nullString(group.Information), group.Currency,
			nullString(group.CurrencyCode), toUnix(group.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert group: %w", err)
		}

		for i := range group.Participants {
			p := &group.Participants[i]
			if p.ID == "" {
				p.ID = s.newID()
			}
			p.GroupID = group.ID

			_, err = c.exec(ctx,
				"INSERT INTO participants (id, group_id, name) VALUES (?, ?, ?)",
				p.ID, p.GroupID, p.Name,
			)
			if err != nil {
				return fmt.Errorf("failed to insert participant: %w", err)
			}
		}
		return nil
	})
}

// GetGroup retrieves a group by ID, including its participants.
func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return s.conn.getGroup(ctx, groupID)
}

func (c conn) getGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	var information, currencyCode sql.NullString
	var createdAt int64

	err := c.queryRow(ctx,
		`SELECT id, name, information, currency, currency_code, created_at
		 FROM groups WHERE id = ?`,
		groupID,
	).Scan(&group.ID, &group.Name, &information, &group.Currency, &currencyCode, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	group.Information = information.String
	group.CurrencyCode = currencyCode.String
	group.CreatedAt = fromUnix(createdAt)

	rows, err := c.query(ctx,
		"SELECT id, group_id, name FROM participants WHERE group_id = ? ORDER BY name, id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.GroupID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		group.Participants = append(group.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return group, nil
}
