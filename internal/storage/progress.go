package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"log/slog"

	"questbot/core/logger"
	"questbot/internal/apperr"
	"questbot/internal/models"
)

// Progress persists quest attempts and drives the admin review flow.
type Progress struct {
	db *sqlx.DB
}

// NewProgress constructs the progress repository.
func NewProgress(db *sqlx.DB) *Progress {
	return &Progress{db: db}
}

// Create records a pending submission. A second attempt at the same quest
// by the same user breaches the (user, quest) uniqueness and conflicts.
func (r *Progress) Create(ctx context.Context, userID, questID uuid.UUID, photo string) (*models.Progress, error) {
	progress := &models.Progress{
		ID:          uuid.New(),
		UserID:      userID,
		QuestID:     questID,
		Photo:       photo,
		Status:      models.StatusPending,
		CompletedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_quest_progress (id, user_id, quest_id, photo, status, admin_comment, completed_at)
		 VALUES ($1, $2, $3, $4, $5, '', $6)`,
		progress.ID, progress.UserID, progress.QuestID, progress.Photo, progress.Status, progress.CompletedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, apperr.Conflict("quest already attempted", err)
		}
		return nil, fmt.Errorf("progress: insert: %w", err)
	}
	logger.Info(ctx, "service.progress", "progress.create",
		slog.String("status", "ok"),
		slog.String("progress_id", progress.ID.String()),
		slog.String("quest_id", questID.String()),
	)
	return progress, nil
}

// ByID returns one progress record.
func (r *Progress) ByID(ctx context.Context, id uuid.UUID) (*models.Progress, error) {
	var progress models.Progress
	err := r.db.GetContext(ctx, &progress,
		`SELECT * FROM user_quest_progress WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("progress record not found")
		}
		return nil, fmt.Errorf("progress: select by id: %w", err)
	}
	return &progress, nil
}

// Approve transitions a pending record to approved and, in the same
// transaction, consumes one unused promo code of the record's quest.
// Decided records are left untouched and reported as a conflict.
func (r *Progress) Approve(ctx context.Context, id uuid.UUID) (*models.Progress, *models.PromoCode, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("progress: begin approve: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var progress models.Progress
	err = tx.GetContext(ctx, &progress,
		`SELECT * FROM user_quest_progress WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if isNoRows(err) {
			return nil, nil, apperr.NotFound("progress record not found")
		}
		return nil, nil, fmt.Errorf("progress: select for approve: %w", err)
	}
	if progress.Decided() {
		return &progress, nil, apperr.Conflict(fmt.Sprintf("progress already %s", progress.Status), nil)
	}

	code, err := firstUnusedForQuestTx(ctx, tx, progress.QuestID)
	if err != nil {
		return &progress, nil, err
	}
	if err := markUsedTx(ctx, tx, code.ID); err != nil {
		return &progress, nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE user_quest_progress SET status = $1, promo_code_id = $2 WHERE id = $3`,
		models.StatusApproved, code.ID, progress.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("progress: update approve: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("progress: commit approve: %w", err)
	}

	progress.Status = models.StatusApproved
	progress.PromoCodeID = &code.ID
	code.IsUsed = true
	logger.Info(ctx, "service.progress", "progress.approve",
		slog.String("status", "ok"),
		slog.String("progress_id", progress.ID.String()),
		slog.String("promo_id", code.ID.String()),
	)
	return &progress, code, nil
}

// Reject transitions a pending record to rejected with the admin comment.
// Decided records are left untouched and reported as a conflict.
func (r *Progress) Reject(ctx context.Context, id uuid.UUID, reason string) (*models.Progress, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("progress: begin reject: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var progress models.Progress
	err = tx.GetContext(ctx, &progress,
		`SELECT * FROM user_quest_progress WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("progress record not found")
		}
		return nil, fmt.Errorf("progress: select for reject: %w", err)
	}
	if progress.Decided() {
		return &progress, apperr.Conflict(fmt.Sprintf("progress already %s", progress.Status), nil)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE user_quest_progress SET status = $1, admin_comment = $2 WHERE id = $3`,
		models.StatusRejected, reason, progress.ID)
	if err != nil {
		return nil, fmt.Errorf("progress: update reject: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("progress: commit reject: %w", err)
	}

	progress.Status = models.StatusRejected
	progress.AdminComment = reason
	logger.Info(ctx, "service.progress", "progress.reject",
		slog.String("status", "ok"),
		slog.String("progress_id", progress.ID.String()),
	)
	return &progress, nil
}

// RewardsFor lists promo codes issued to the user via approved attempts.
func (r *Progress) RewardsFor(ctx context.Context, userID uuid.UUID) ([]models.RewardedQuest, error) {
	var rewards []models.RewardedQuest
	err := r.db.SelectContext(ctx, &rewards,
		`SELECT q.name AS quest_name, pc.code AS code
		 FROM user_quest_progress p
		 JOIN quests q ON q.id = p.quest_id
		 JOIN promo_codes pc ON pc.id = p.promo_code_id
		 WHERE p.user_id = $1 AND p.status = $2 AND p.promo_code_id IS NOT NULL
		 ORDER BY p.completed_at`, userID, models.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("progress: select rewards: %w", err)
	}
	return rewards, nil
}
