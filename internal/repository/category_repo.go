package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blogspot-api/internal/db"
	"blogspot-api/internal/domain"
)

// CategoryRepository define el contrato de persistencia para categorías.
type CategoryRepository interface {
	List(ctx context.Context) ([]domain.Category, error)
	ReplaceAll(ctx context.Context, categories []domain.Category) error
}

type PgCategoryRepository struct {
	pool *pgxpool.Pool
}

func NewPgCategoryRepository(pool *pgxpool.Pool) *PgCategoryRepository {
	return &PgCategoryRepository{pool: pool}
}

func (r *PgCategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	const query = `
		SELECT id, name, icon, description, created_at
		FROM categories
		ORDER BY name ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ReplaceAll vacía el catálogo e inserta las categorías dadas en una transacción.
func (r *PgCategoryRepository) ReplaceAll(ctx context.Context, categories []domain.Category) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM categories`); err != nil {
			return err
		}
		const insert = `
			INSERT INTO categories (id, name, icon, description, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		batch := &pgx.Batch{}
		for _, c := range categories {
			batch.Queue(insert, c.ID, c.Name, c.Icon, c.Description, c.CreatedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}
