package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

type BallotRepository struct {
	db *sql.DB
}

func NewBallotRepository(db *sql.DB) *BallotRepository {
	return &BallotRepository{db: db}
}

const ballotItemColumns = "id, kind, title, text, category, topics, created_at"

func (r *BallotRepository) List(ctx context.Context) ([]domain.BallotItem, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+ballotItemColumns+`
FROM ballot_items
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list ballot items: %w", err)
	}
	defer rows.Close()

	return collectBallotItems(rows)
}

func (r *BallotRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.BallotItem, error) {
	if len(ids) == 0 {
		return []domain.BallotItem{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `
SELECT ` + ballotItemColumns + `
FROM ballot_items
WHERE id IN (` + strings.Join(placeholders, ",") + `)
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get ballot items by ids: %w", err)
	}
	defer rows.Close()

	return collectBallotItems(rows)
}

func (r *BallotRepository) Create(ctx context.Context, item *domain.BallotItem) error {
	topicsJSON, err := json.Marshal(item.Topics)
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO ballot_items (id, kind, title, text, category, topics, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, item.ID, string(item.Kind), item.Title, item.Text, item.Category, topicsJSON, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ballot item: %w", err)
	}
	return nil
}

func collectBallotItems(rows *sql.Rows) ([]domain.BallotItem, error) {
	out := make([]domain.BallotItem, 0)
	for rows.Next() {
		var item domain.BallotItem
		var kind string
		var topicsRaw []byte
		err := rows.Scan(&item.ID, &kind, &item.Title, &item.Text, &item.Category, &topicsRaw, &item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan ballot item: %w", err)
		}
		if err := json.Unmarshal(topicsRaw, &item.Topics); err != nil {
			return nil, fmt.Errorf("unmarshal topics: %w", err)
		}
		item.Kind = domain.ItemKind(kind)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ballot items: %w", err)
	}
	return out, nil
}
