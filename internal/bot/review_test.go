package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"questbot/internal/apperr"
	"questbot/internal/models"
)

// reviewStore mimics the progress repository's review semantics: decided
// records conflict without changes, and a promo code is consumed only on
// the pending to approved transition.
type reviewStore struct {
	record   *models.Progress
	codes    []*models.PromoCode
	consumed int
}

func (s *reviewStore) Create(ctx context.Context, userID, questID uuid.UUID, photo string) (*models.Progress, error) {
	return nil, apperr.Conflict("quest already attempted", nil)
}

func (s *reviewStore) RewardsFor(ctx context.Context, userID uuid.UUID) ([]models.RewardedQuest, error) {
	return nil, nil
}

func (s *reviewStore) Approve(ctx context.Context, id uuid.UUID) (*models.Progress, *models.PromoCode, error) {
	if s.record == nil || s.record.ID != id {
		return nil, nil, apperr.NotFound("progress record not found")
	}
	if s.record.Decided() {
		return s.record, nil, apperr.Conflict(fmt.Sprintf("progress already %s", s.record.Status), nil)
	}
	if s.consumed >= len(s.codes) {
		return s.record, nil, apperr.Conflict("no unused promo codes", nil)
	}
	code := s.codes[s.consumed]
	s.consumed++
	code.IsUsed = true
	s.record.Status = models.StatusApproved
	s.record.PromoCodeID = &code.ID
	return s.record, code, nil
}

func (s *reviewStore) Reject(ctx context.Context, id uuid.UUID, reason string) (*models.Progress, error) {
	if s.record == nil || s.record.ID != id {
		return nil, apperr.NotFound("progress record not found")
	}
	if s.record.Decided() {
		return s.record, apperr.Conflict(fmt.Sprintf("progress already %s", s.record.Status), nil)
	}
	s.record.Status = models.StatusRejected
	s.record.AdminComment = reason
	return s.record, nil
}

type staticCatalog struct {
	quest *models.Quest
}

func (c staticCatalog) ByID(ctx context.Context, id uuid.UUID) (*models.Quest, error) {
	if c.quest != nil && c.quest.ID == id {
		return c.quest, nil
	}
	return nil, apperr.NotFound("quest not found")
}

func (c staticCatalog) FirstUnattemptedActiveFor(ctx context.Context, userID uuid.UUID) (*models.Quest, error) {
	return nil, apperr.NotFound("no quests left")
}

func newReviewFixture(codes ...string) (*App, *reviewStore, *models.Progress) {
	quest := &models.Quest{ID: uuid.New(), Name: "Квест у фонтана"}
	record := &models.Progress{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		QuestID: quest.ID,
		Status:  models.StatusPending,
	}
	store := &reviewStore{record: record}
	for _, code := range codes {
		store.codes = append(store.codes, &models.PromoCode{ID: uuid.New(), Code: code, QuestID: quest.ID})
	}
	app := &App{progress: store, quests: staticCatalog{quest: quest}}
	return app, store, record
}

func TestRepeatedApproveConsumesSingleCode(t *testing.T) {
	app, store, record := newReviewFixture("SPRING10", "SPRING11")
	ctx := context.Background()

	first := app.reviewApprove(ctx, record.ID)
	if store.consumed != 1 {
		t.Fatalf("consumed = %d after first approval, want 1", store.consumed)
	}
	if record.Status != models.StatusApproved {
		t.Fatalf("status = %s, want approved", record.Status)
	}
	if !strings.Contains(first.userNote, "SPRING10") {
		t.Errorf("user note %q misses the issued code", first.userNote)
	}
	if first.userID != record.UserID {
		t.Errorf("outcome addressed to %s, want %s", first.userID, record.UserID)
	}

	second := app.reviewApprove(ctx, record.ID)
	if store.consumed != 1 {
		t.Errorf("consumed = %d after repeated approval, want 1", store.consumed)
	}
	if !strings.Contains(second.reply, "уже обработана") {
		t.Errorf("repeated approval reply %q does not report the decided record", second.reply)
	}
	if second.userNote != "" {
		t.Errorf("repeated approval notified the user: %q", second.userNote)
	}
	if record.PromoCodeID == nil || *record.PromoCodeID != store.codes[0].ID {
		t.Error("record is not tied to the single consumed code")
	}
}

func TestApproveWithoutCodesKeepsRecordPending(t *testing.T) {
	app, store, record := newReviewFixture()

	out := app.reviewApprove(context.Background(), record.ID)
	if record.Status != models.StatusPending {
		t.Fatalf("status = %s, want pending", record.Status)
	}
	if store.consumed != 0 {
		t.Errorf("consumed = %d, want 0", store.consumed)
	}
	if !strings.Contains(out.reply, "промокоды") {
		t.Errorf("reply %q does not mention exhausted codes", out.reply)
	}
	if out.userNote != "" {
		t.Errorf("exhaustion notified the user: %q", out.userNote)
	}
}

func TestRejectDecidedRecordKeepsComment(t *testing.T) {
	app, store, record := newReviewFixture("SPRING10")
	ctx := context.Background()

	first := app.reviewReject(ctx, record.ID, "не то фото")
	if record.Status != models.StatusRejected {
		t.Fatalf("status = %s, want rejected", record.Status)
	}
	if !strings.Contains(first.userNote, "не то фото") {
		t.Errorf("user note %q misses the reason", first.userNote)
	}

	second := app.reviewReject(ctx, record.ID, "другая причина")
	if !strings.Contains(second.reply, "уже обработана") {
		t.Errorf("repeated rejection reply %q does not report the decided record", second.reply)
	}
	if record.AdminComment != "не то фото" {
		t.Errorf("comment = %q, original overwritten", record.AdminComment)
	}
	if second.userNote != "" {
		t.Errorf("repeated rejection notified the user: %q", second.userNote)
	}

	late := app.reviewApprove(ctx, record.ID)
	if store.consumed != 0 {
		t.Errorf("approving a rejected record consumed %d codes", store.consumed)
	}
	if !strings.Contains(late.reply, "уже обработана") {
		t.Errorf("late approval reply %q does not report the decided record", late.reply)
	}
}

func TestReviewUnknownRecord(t *testing.T) {
	app, _, _ := newReviewFixture("SPRING10")

	out := app.reviewApprove(context.Background(), uuid.New())
	if out.reply != "Заявка не найдена." {
		t.Errorf("reply = %q", out.reply)
	}
}
