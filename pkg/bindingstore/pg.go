package bindingstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/openwallet/nmc-attestor/pkg/binding"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the binding store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) CreateBinding(ctx context.Context, b *binding.NameBinding) error {
	dao := toBindingDao(b)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create binding: %w", err)
	}

	return nil
}

func (s *pgStore) LoadPending(ctx context.Context) ([]*binding.NameBinding, error) {
	var daos []BindingDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("reg_data IS NOT NULL").
		Where("active = ?", false).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending bindings: %w", err)
	}

	bindings := make([]*binding.NameBinding, len(daos))
	for i := range daos {
		bindings[i] = toBinding(&daos[i])
	}
	return bindings, nil
}

func (s *pgStore) GetBinding(ctx context.Context, name string) (*binding.NameBinding, error) {
	dao := new(BindingDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("name = ?", name).
		Order("id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBindingNotFound
		}
		return nil, fmt.Errorf("failed to get binding: %w", err)
	}

	return toBinding(dao), nil
}

func (s *pgStore) ListBindings(ctx context.Context, limit int) ([]*binding.NameBinding, error) {
	var daos []BindingDao
	query := s.db.NewSelect().
		Model(&daos).
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bindings: %w", err)
	}

	bindings := make([]*binding.NameBinding, len(daos))
	for i := range daos {
		bindings[i] = toBinding(&daos[i])
	}
	return bindings, nil
}

func (s *pgStore) UpdateRegData(ctx context.Context, name, regData string) error {
	_, err := s.db.NewUpdate().
		Model((*BindingDao)(nil)).
		Set("reg_data = ?", regData).
		Set("updated_at = NOW()").
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update registration data: %w", err)
	}
	return nil
}

func (s *pgStore) MarkActive(ctx context.Context, name string) error {
	_, err := s.db.NewUpdate().
		Model((*BindingDao)(nil)).
		Set("active = ?", true).
		Set("reg_data = NULL").
		Set("updated_at = NOW()").
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark binding active: %w", err)
	}
	return nil
}

func (s *pgStore) SetUpdateTxID(ctx context.Context, name, txid string) error {
	_, err := s.db.NewUpdate().
		Model((*BindingDao)(nil)).
		Set("update_txid = ?", txid).
		Set("updated_at = NOW()").
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set update txid: %w", err)
	}
	return nil
}
