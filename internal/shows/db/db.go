package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-boxoffice/internal/database"
	"ms-boxoffice/internal/layout"
	"ms-boxoffice/internal/models"
)

// DB is the show catalogue store. Bun is either the pool or a transaction.
type DB struct {
	Bun bun.IDB
}

func (d *DB) WithTx(tx bun.Tx) *DB {
	return &DB{Bun: tx}
}

func (d *DB) CreateShow(ctx context.Context, show *models.Show) error {
	_, err := d.Bun.NewInsert().Model(show).Exec(ctx)
	return database.Wrap(err, models.ErrShowNotFound)
}

// GetShow loads a show with its layout already in canonical bitmap form.
func (d *DB) GetShow(ctx context.Context, id string) (*models.Show, error) {
	var show models.Show
	err := d.Bun.NewSelect().
		Model(&show).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Wrap(err, models.ErrShowNotFound)
	}
	show.Layout = layout.Normalize(show.Layout)
	return &show, nil
}

func (d *DB) ListShows(ctx context.Context, includeDrafts bool) ([]models.Show, error) {
	var shows []models.Show
	q := d.Bun.NewSelect().Model(&shows).Order("created_at DESC")
	if !includeDrafts {
		q = q.Where("draft = ?", false)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, database.Wrap(err, models.ErrShowNotFound)
	}
	for i := range shows {
		shows[i].Layout = layout.Normalize(shows[i].Layout)
	}
	return shows, nil
}

func (d *DB) GetOnBill(ctx context.Context) (*models.Show, error) {
	var show models.Show
	err := d.Bun.NewSelect().
		Model(&show).
		Where("on_bill = ?", true).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Wrap(err, models.ErrShowNotFound)
	}
	show.Layout = layout.Normalize(show.Layout)
	return &show, nil
}

// UpdateShow writes the editable fields. Sessions, layout, on_bill and the
// booking sequence have their own writers.
func (d *DB) UpdateShow(ctx context.Context, show *models.Show) error {
	res, err := d.Bun.NewUpdate().
		Model(show).
		Column("title", "author", "synopsis", "year", "draft", "reservations_open",
			"reservation_required", "paid", "price", "payment_place", "hold_hours", "ticket_config", "updated_at").
		WherePK().
		Exec(ctx)
	return database.Affected(res, err, models.ErrShowNotFound)
}

func (d *DB) UpdateSessions(ctx context.Context, show *models.Show) error {
	res, err := d.Bun.NewUpdate().
		Model(show).
		Column("sessions", "updated_at").
		WherePK().
		Exec(ctx)
	return database.Affected(res, err, models.ErrShowNotFound)
}

func (d *DB) UpdateLayout(ctx context.Context, show *models.Show) error {
	res, err := d.Bun.NewUpdate().
		Model(show).
		Column("layout", "updated_at").
		WherePK().
		Exec(ctx)
	return database.Affected(res, err, models.ErrShowNotFound)
}

// ClearOnBill drops the flag from every show except keepID.
func (d *DB) ClearOnBill(ctx context.Context, keepID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Show)(nil)).
		Set("on_bill = ?", false).
		Where("on_bill = ?", true).
		Where("id <> ?", keepID).
		Exec(ctx)
	return database.Wrap(err, models.ErrShowNotFound)
}

func (d *DB) SetOnBill(ctx context.Context, id string, onBill bool) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Show)(nil)).
		Set("on_bill = ?", onBill).
		Where("id = ?", id).
		Exec(ctx)
	return database.Affected(res, err, models.ErrShowNotFound)
}

// LockShow bumps the booking sequence. Inside a transaction this holds the
// show row until commit, so bookings for one show run one at a time.
func (d *DB) LockShow(ctx context.Context, id string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Show)(nil)).
		Set("booking_seq = booking_seq + 1").
		Where("id = ?", id).
		Exec(ctx)
	return database.Affected(res, err, models.ErrShowNotFound)
}

func (d *DB) DeleteShow(ctx context.Context, id string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Show)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return database.Affected(res, err, models.ErrShowNotFound)
}

func (d *DB) GetLayoutConfig(ctx context.Context, key string) (*models.LayoutConfig, error) {
	var cfg models.LayoutConfig
	err := d.Bun.NewSelect().
		Model(&cfg).
		Where("layout_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Wrap(err, models.ErrNotFound)
	}
	cfg.Rows = layout.Normalize(cfg.Rows)
	return &cfg, nil
}

// SaveLayoutConfig replaces the stored layout wholesale.
func (d *DB) SaveLayoutConfig(ctx context.Context, cfg *models.LayoutConfig) error {
	_, err := d.Bun.NewDelete().
		Model((*models.LayoutConfig)(nil)).
		Where("layout_key = ?", cfg.Key).
		Exec(ctx)
	if err != nil {
		return database.Wrap(err, models.ErrNotFound)
	}
	_, err = d.Bun.NewInsert().Model(cfg).Exec(ctx)
	return database.Wrap(err, models.ErrNotFound)
}

func (d *DB) CreateMember(ctx context.Context, member *models.Member) error {
	_, err := d.Bun.NewInsert().Model(member).Exec(ctx)
	return database.Wrap(err, models.ErrMemberNotFound)
}

func (d *DB) GetMember(ctx context.Context, id string) (*models.Member, error) {
	var member models.Member
	err := d.Bun.NewSelect().
		Model(&member).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Wrap(err, models.ErrMemberNotFound)
	}
	return &member, nil
}

func (d *DB) ListMembers(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	err := d.Bun.NewSelect().Model(&members).Order("name ASC").Scan(ctx)
	if err != nil {
		return nil, database.Wrap(err, models.ErrMemberNotFound)
	}
	return members, nil
}

func (d *DB) UpdateMember(ctx context.Context, member *models.Member) error {
	res, err := d.Bun.NewUpdate().
		Model(member).
		Column("name", "role", "bio").
		WherePK().
		Exec(ctx)
	return database.Affected(res, err, models.ErrMemberNotFound)
}

func (d *DB) DeleteMember(ctx context.Context, id string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Member)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return database.Affected(res, err, models.ErrMemberNotFound)
}

func (d *DB) AddParticipation(ctx context.Context, p *models.Participation) error {
	_, err := d.Bun.NewInsert().Model(p).Exec(ctx)
	return database.Wrap(err, models.ErrNotFound)
}

func (d *DB) RemoveParticipation(ctx context.Context, id string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Participation)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return database.Affected(res, err, models.ErrNotFound)
}

// ListParticipations returns the cast of a show with members attached.
func (d *DB) ListParticipations(ctx context.Context, showID string) ([]models.Participation, error) {
	var cast []models.Participation
	err := d.Bun.NewSelect().
		Model(&cast).
		Relation("Member").
		Where("participation.show_id = ?", showID).
		Order("participation.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, database.Wrap(err, models.ErrNotFound)
	}
	return cast, nil
}

func (d *DB) DeleteParticipationsForShow(ctx context.Context, showID string) (int, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.Participation)(nil)).
		Where("show_id = ?", showID).
		Exec(ctx)
	if err != nil {
		return 0, database.Wrap(err, models.ErrNotFound)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (d *DB) DeleteParticipationsForMember(ctx context.Context, memberID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Participation)(nil)).
		Where("member_id = ?", memberID).
		Exec(ctx)
	return database.Wrap(err, models.ErrNotFound)
}
