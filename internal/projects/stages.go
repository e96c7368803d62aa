// Package projects touches the project schema only where staged billing
// needs it: accumulating paid hours onto project stages.
package projects

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrStageNotFound = errors.New("project stage not found")

type Stage struct {
	ID             int64 `json:"id"`
	ProjectID      int64 `json:"project_id"`
	EstimatedHours int32 `json:"estimated_hours"`
	BilledHours    int32 `json:"billed_hours"`
	IsPaid         bool  `json:"is_paid"`
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Get(ctx context.Context, id int64) (Stage, error) {
	var s Stage
	err := r.DB.QueryRow(ctx, `
		SELECT id, project_id, estimated_hours, billed_hours, is_paid
		FROM project_stages WHERE id = $1`, id).
		Scan(&s.ID, &s.ProjectID, &s.EstimatedHours, &s.BilledHours, &s.IsPaid)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, ErrStageNotFound
	}
	return s, err
}

// ApplyOrderBilling credits each stage referenced by the order's items with
// that item's billed hours (quantity when unset) and flips is_paid once the
// estimate is covered. The billing_applied flip on the order makes this
// exactly-once no matter how often the success page or webhook fires.
func (r *Repo) ApplyOrderBilling(ctx context.Context, orderID int64) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET billing_applied = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT billing_applied`, orderID)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return false, nil // already billed, or no such order
	}

	_, err = tx.Exec(ctx, `
		UPDATE project_stages ps
		SET billed_hours = ps.billed_hours + hrs.total, updated_at = NOW()
		FROM (
			SELECT project_stage_id,
			       SUM(CASE WHEN billed_hours > 0 THEN billed_hours ELSE quantity END) AS total
			FROM order_items
			WHERE order_id = $1 AND project_stage_id IS NOT NULL
			GROUP BY project_stage_id
		) hrs
		WHERE ps.id = hrs.project_stage_id`, orderID)
	if err != nil {
		return false, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE project_stages ps
		SET is_paid = TRUE, updated_at = NOW()
		FROM order_items oi
		WHERE oi.order_id = $1 AND oi.project_stage_id = ps.id
		  AND NOT ps.is_paid AND ps.billed_hours >= ps.estimated_hours`, orderID)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}
