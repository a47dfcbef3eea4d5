package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"questbot/internal/apperr"
	"questbot/internal/models"
)

// PromoCodes persists reward coupons. Codes are created out of band
// (seeding); the bot only consumes them during admin approval.
type PromoCodes struct {
	db *sqlx.DB
}

// NewPromoCodes constructs the promo code repository.
func NewPromoCodes(db *sqlx.DB) *PromoCodes {
	return &PromoCodes{db: db}
}

// Create inserts a code; duplicates of the unique code string conflict.
func (r *PromoCodes) Create(ctx context.Context, code *models.PromoCode) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO promo_codes (id, code, quest_id, is_used, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		code.ID, code.Code, code.QuestID, code.IsUsed, code.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return apperr.Conflict("promo code already exists", err)
		}
		return fmt.Errorf("promo codes: insert: %w", err)
	}
	return nil
}

// firstUnusedForQuestTx locks and returns one unused code for the quest.
// Runs inside the approval transaction so two admins cannot grab the same code.
func firstUnusedForQuestTx(ctx context.Context, tx *sqlx.Tx, questID uuid.UUID) (*models.PromoCode, error) {
	var code models.PromoCode
	err := tx.GetContext(ctx, &code,
		`SELECT * FROM promo_codes
		 WHERE quest_id = $1 AND is_used = FALSE
		 ORDER BY created_at, id
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`, questID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.Conflict("no unused promo codes left for quest", nil)
		}
		return nil, fmt.Errorf("promo codes: select unused: %w", err)
	}
	return &code, nil
}

// markUsedTx flags the code as consumed inside the approval transaction.
func markUsedTx(ctx context.Context, tx *sqlx.Tx, codeID uuid.UUID) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE promo_codes SET is_used = TRUE WHERE id = $1 AND is_used = FALSE`, codeID)
	if err != nil {
		return fmt.Errorf("promo codes: mark used: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Conflict("promo code already consumed", nil)
	}
	return nil
}
