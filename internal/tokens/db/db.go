package db

import (
	"context"
	"errors"

	"github.com/uptrace/bun"

	"ms-boxoffice/internal/database"
	"ms-boxoffice/internal/models"
)

type DB struct {
	Bun bun.IDB
}

func (d *DB) WithTx(tx bun.Tx) *DB {
	return &DB{Bun: tx}
}

func (d *DB) CreateToken(ctx context.Context, token *models.InvitationToken) error {
	_, err := d.Bun.NewInsert().Model(token).Exec(ctx)
	return database.Wrap(err, models.ErrTokenNotFound)
}

func (d *DB) CreateTokens(ctx context.Context, tokens []models.InvitationToken) error {
	if len(tokens) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().Model(&tokens).Exec(ctx)
	return database.Wrap(err, models.ErrTokenNotFound)
}

func (d *DB) GetByToken(ctx context.Context, token string) (*models.InvitationToken, error) {
	var t models.InvitationToken
	err := d.Bun.NewSelect().
		Model(&t).
		Where("token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Wrap(err, models.ErrTokenNotFound)
	}
	return &t, nil
}

func (d *DB) GetByID(ctx context.Context, id string) (*models.InvitationToken, error) {
	var t models.InvitationToken
	err := d.Bun.NewSelect().
		Model(&t).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Wrap(err, models.ErrTokenNotFound)
	}
	return &t, nil
}

func (d *DB) TokenExists(ctx context.Context, token string) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.InvitationToken)(nil)).
		Where("token = ?", token).
		Exists(ctx)
	if err != nil {
		return false, database.Wrap(err, models.ErrTokenNotFound)
	}
	return exists, nil
}

// ListByShow lists a show's tokens; an empty kind lists every kind.
func (d *DB) ListByShow(ctx context.Context, showID string, kind models.HolderKind) ([]models.InvitationToken, error) {
	var tokens []models.InvitationToken
	q := d.Bun.NewSelect().
		Model(&tokens).
		Where("show_id = ?", showID).
		Order("created_at ASC")
	if kind != "" {
		q = q.Where("holder_kind = ?", kind)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, database.Wrap(err, models.ErrTokenNotFound)
	}
	return tokens, nil
}

// ConsumeQuota adds count to quota_used only if the result stays within
// quota_max. The guard lives in the UPDATE so concurrent callers can never
// overshoot.
func (d *DB) ConsumeQuota(ctx context.Context, id string, count int) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.InvitationToken)(nil)).
		Set("quota_used = quota_used + ?", count).
		Where("id = ?", id).
		Where("quota_used + ? <= quota_max", count).
		Exec(ctx)
	err = database.Affected(res, err, models.ErrInsufficientQuota)
	if !errors.Is(err, models.ErrInsufficientQuota) {
		return err
	}

	if _, getErr := d.GetByID(ctx, id); getErr != nil {
		return getErr
	}
	return models.ErrInsufficientQuota
}

// Delete removes a token. Deleting a missing token is not an error.
func (d *DB) Delete(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.InvitationToken)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return database.Wrap(err, models.ErrTokenNotFound)
}

// DeleteByShow removes a show's tokens in one statement; an empty kind
// removes every kind.
func (d *DB) DeleteByShow(ctx context.Context, showID string, kind models.HolderKind) (int, error) {
	q := d.Bun.NewDelete().
		Model((*models.InvitationToken)(nil)).
		Where("show_id = ?", showID)
	if kind != "" {
		q = q.Where("holder_kind = ?", kind)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, database.Wrap(err, models.ErrTokenNotFound)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
