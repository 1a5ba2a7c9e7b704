package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-boxoffice/internal/database"
	"ms-boxoffice/internal/models"
)

// DB is the reservation ledger store. It applies no business rules.
type DB struct {
	Bun bun.IDB
}

func (d *DB) WithTx(tx bun.Tx) *DB {
	return &DB{Bun: tx}
}

func (d *DB) CreateReservations(ctx context.Context, reservations []models.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().Model(&reservations).Exec(ctx)
	return database.Wrap(err, models.ErrReservationNotFound)
}

func (d *DB) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	var r models.Reservation
	err := d.Bun.NewSelect().
		Model(&r).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Wrap(err, models.ErrReservationNotFound)
	}
	return &r, nil
}

func (d *DB) GetByTicketCode(ctx context.Context, code string) (*models.Reservation, error) {
	var r models.Reservation
	err := d.Bun.NewSelect().
		Model(&r).
		Where("ticket_code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Wrap(err, models.ErrReservationNotFound)
	}
	return &r, nil
}

func (d *DB) list(ctx context.Context, apply func(q *bun.SelectQuery) *bun.SelectQuery) ([]models.Reservation, error) {
	var out []models.Reservation
	q := d.Bun.NewSelect().Model(&out)
	q = apply(q).Order("created_at ASC", "seat_row ASC", "seat_number ASC")
	if err := q.Scan(ctx); err != nil {
		return nil, database.Wrap(err, models.ErrReservationNotFound)
	}
	return out, nil
}

func (d *DB) ListBySession(ctx context.Context, showID, sessionID string) ([]models.Reservation, error) {
	return d.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("show_id = ?", showID).Where("session_id = ?", sessionID)
	})
}

func (d *DB) ListByShow(ctx context.Context, showID string) ([]models.Reservation, error) {
	return d.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("show_id = ?", showID)
	})
}

func (d *DB) ListByGroup(ctx context.Context, groupID string) ([]models.Reservation, error) {
	return d.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("group_id = ?", groupID)
	})
}

func (d *DB) ListByHolderEmail(ctx context.Context, email string) ([]models.Reservation, error) {
	return d.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("LOWER(holder_email) = LOWER(?)", email)
	})
}

func (d *DB) ListByIDs(ctx context.Context, ids []string) ([]models.Reservation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return d.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id IN (?)", bun.In(ids))
	})
}

func (d *DB) ListAll(ctx context.Context) ([]models.Reservation, error) {
	return d.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery { return q })
}

func (d *DB) TicketCodeExists(ctx context.Context, code string) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.Reservation)(nil)).
		Where("ticket_code = ?", code).
		Exists(ctx)
	return exists, database.Wrap(err, models.ErrReservationNotFound)
}

func (d *DB) GroupExists(ctx context.Context, groupID string) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.Reservation)(nil)).
		Where("group_id = ?", groupID).
		Exists(ctx)
	return exists, database.Wrap(err, models.ErrReservationNotFound)
}

// UpdatePaymentStatus writes the status; a zero paidAt clears paid_at.
func (d *DB) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, paidAt time.Time) error {
	q := d.Bun.NewUpdate().
		Model((*models.Reservation)(nil)).
		Set("payment_status = ?", status).
		Where("id = ?", id)
	if paidAt.IsZero() {
		q = q.Set("paid_at = NULL")
	} else {
		q = q.Set("paid_at = ?", paidAt)
	}
	res, err := q.Exec(ctx)
	return database.Affected(res, err, models.ErrReservationNotFound)
}

// MarkCheckedIn flips checked_in only if it is still false. It reports
// whether this call made the change.
func (d *DB) MarkCheckedIn(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Reservation)(nil)).
		Set("checked_in = ?", true).
		Set("checked_in_at = ?", at).
		Where("id = ?", id).
		Where("checked_in = ?", false).
		Exec(ctx)
	if err != nil {
		return false, database.Wrap(err, models.ErrReservationNotFound)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, database.Wrap(err, models.ErrReservationNotFound)
	}
	return n > 0, nil
}

// ClearCheckIn undoes a check-in.
func (d *DB) ClearCheckIn(ctx context.Context, id string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Reservation)(nil)).
		Set("checked_in = ?", false).
		Set("checked_in_at = NULL").
		Where("id = ?", id).
		Exec(ctx)
	return database.Affected(res, err, models.ErrReservationNotFound)
}

func (d *DB) Delete(ctx context.Context, id string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Reservation)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return database.Affected(res, err, models.ErrReservationNotFound)
}

func (d *DB) DeleteMany(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := d.Bun.NewDelete().
		Model((*models.Reservation)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return 0, database.Wrap(err, models.ErrReservationNotFound)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
