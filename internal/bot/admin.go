package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"log/slog"

	"questbot/core/logger"
	"questbot/core/telegram/callbacks"
	"questbot/core/telegram/format"
	"questbot/core/telegram/helpers"
	"questbot/core/telegram/keyboard"
	"questbot/internal/apperr"
	"questbot/internal/models"
)

const rejectStockComment = "Фото не соответствует заданию"

// adminChat returns the recipient of review notifications.
func (a *App) adminChat() tele.Recipient {
	id := a.cfg.Core.Telegram.AdminGroupID
	if id == 0 {
		id = a.cfg.Core.Telegram.AdminID
	}
	return tele.ChatID(id)
}

// notifyAdmins forwards a submission to the admin chat with ready-made
// review commands and inline buttons.
func (a *App) notifyAdmins(c tele.Context, user *models.User, questID uuid.UUID, progressID, photoFileID string) error {
	ctx := helpers.BuildContext(c)

	questName := "?"
	if quest, err := a.quests.ByID(ctx, questID); err == nil {
		questName = quest.Name
	}
	phone := format.DerefString(user.PhoneNumber, "номер не указан")

	caption := fmt.Sprintf(
		"📬 Новая заявка\n👤 %s (%s)\n🎯 %s\n🆔 %s\n\n/approve %s\n/reject %s <причина>",
		user.Name, phone, questName, progressID, progressID, progressID,
	)
	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Принять", Unique: "approve", Data: progressID},
		{Text: "❌ Отклонить", Unique: "reject", Data: progressID},
	})

	photo := &tele.Photo{File: tele.File{FileID: photoFileID}, Caption: caption}
	_, err := c.Bot().Send(a.adminChat(), photo, markup)
	return err
}

// notifyUser delivers a review outcome to the submitting user.
func (a *App) notifyUser(c tele.Context, userID uuid.UUID, text string) {
	ctx := helpers.BuildContext(c)
	user, err := a.users.ByID(ctx, userID)
	if err != nil {
		logger.Error(ctx, "bot", "review.notify.failed",
			slog.String("err", err.Error()),
		)
		return
	}
	if _, err := c.Bot().Send(&tele.User{ID: user.TelegramID}, text); err != nil {
		logger.Error(ctx, "bot", "review.notify.failed",
			slog.Int64("user_id", user.TelegramID),
			slog.String("err", err.Error()),
		)
	}
}

// reviewOutcome is what one review decision tells the admin and, when a
// record actually changed, the submitting user.
type reviewOutcome struct {
	reply    string
	userID   uuid.UUID
	userNote string
}

// reviewApprove flips one pending submission to approved and hands out a
// code. Decided records are answered without changing anything, so a
// repeated approval never consumes a second code.
func (a *App) reviewApprove(ctx context.Context, id uuid.UUID) reviewOutcome {
	record, code, err := a.progress.Approve(ctx, id)
	if err != nil {
		switch {
		case apperr.IsNotFound(err):
			return reviewOutcome{reply: "Заявка не найдена."}
		case apperr.IsConflict(err) && record != nil && record.Decided():
			return reviewOutcome{reply: fmt.Sprintf("Заявка уже обработана (статус: %s).", record.Status)}
		case apperr.IsConflict(err):
			return reviewOutcome{reply: "⚠️ Свободные промокоды для этого квеста закончились. Заявка осталась на рассмотрении."}
		}
		logger.Error(ctx, "bot", "review.approve.failed",
			slog.String("progress_id", id.String()),
			slog.String("err", err.Error()),
		)
		return reviewOutcome{reply: "❌ Не удалось обработать заявку."}
	}

	logger.Info(ctx, "bot", "review.approve",
		slog.String("status", "ok"),
		slog.String("progress_id", id.String()),
		slog.String("promo_id", code.ID.String()),
	)
	return reviewOutcome{
		reply:  "✅ Заявка принята, промокод выдан.",
		userID: record.UserID,
		userNote: fmt.Sprintf("🎉 Квест «%s» засчитан! Ваш промокод: %s",
			a.questName(ctx, record.QuestID), code.Code),
	}
}

// reviewReject flips one pending submission to rejected with a comment.
// Decided records are answered without changing anything.
func (a *App) reviewReject(ctx context.Context, id uuid.UUID, reason string) reviewOutcome {
	record, err := a.progress.Reject(ctx, id, reason)
	if err != nil {
		switch {
		case apperr.IsNotFound(err):
			return reviewOutcome{reply: "Заявка не найдена."}
		case apperr.IsConflict(err) && record != nil && record.Decided():
			return reviewOutcome{reply: fmt.Sprintf("Заявка уже обработана (статус: %s).", record.Status)}
		}
		logger.Error(ctx, "bot", "review.reject.failed",
			slog.String("progress_id", id.String()),
			slog.String("err", err.Error()),
		)
		return reviewOutcome{reply: "❌ Не удалось обработать заявку."}
	}

	logger.Info(ctx, "bot", "review.reject",
		slog.String("status", "ok"),
		slog.String("progress_id", id.String()),
	)
	return reviewOutcome{
		reply:  "🚫 Заявка отклонена.",
		userID: record.UserID,
		userNote: fmt.Sprintf("😔 Квест «%s» не засчитан. Причина: %s\nПопробуйте другой квест!",
			a.questName(ctx, record.QuestID), reason),
	}
}

func (a *App) questName(ctx context.Context, id uuid.UUID) string {
	quest, err := a.quests.ByID(ctx, id)
	if err != nil {
		return "?"
	}
	return quest.Name
}

func (a *App) approve(c tele.Context, id uuid.UUID) error {
	out := a.reviewApprove(helpers.BuildContext(c), id)
	if out.userNote != "" {
		a.notifyUser(c, out.userID, out.userNote)
	}
	return helpers.SendText(c, out.reply)
}

func (a *App) reject(c tele.Context, id uuid.UUID, reason string) error {
	out := a.reviewReject(helpers.BuildContext(c), id, reason)
	if out.userNote != "" {
		a.notifyUser(c, out.userID, out.userNote)
	}
	return helpers.SendText(c, out.reply)
}

// handleApproveCommand implements /approve <progressId>.
func (a *App) handleApproveCommand(c tele.Context) error {
	id, ok := parseProgressArg(c.Args())
	if !ok {
		return helpers.SendText(c, "Использование: /approve <id заявки>")
	}
	return a.approve(c, id)
}

// handleRejectCommand implements /reject <progressId> <reason>.
func (a *App) handleRejectCommand(c tele.Context) error {
	args := c.Args()
	id, ok := parseProgressArg(args)
	if !ok || len(args) < 2 {
		return helpers.SendText(c, "Использование: /reject <id заявки> <причина>")
	}
	reason := strings.Join(args[1:], " ")
	return a.reject(c, id, reason)
}

// handleApproveCallback serves the inline ✅ button.
func (a *App) handleApproveCallback(c tele.Context) error {
	if !a.isAdmin(c) {
		return nil
	}
	id, err := callbacks.PayloadUUID(c)
	if err != nil {
		return helpers.SendText(c, "Некорректный идентификатор заявки.")
	}
	return a.approve(c, id)
}

// handleRejectCallback serves the inline ❌ button with a stock comment.
func (a *App) handleRejectCallback(c tele.Context) error {
	if !a.isAdmin(c) {
		return nil
	}
	id, err := callbacks.PayloadUUID(c)
	if err != nil {
		return helpers.SendText(c, "Некорректный идентификатор заявки.")
	}
	return a.reject(c, id, rejectStockComment)
}

func (a *App) isAdmin(c tele.Context) bool {
	return c.Sender() != nil && c.Sender().ID == a.cfg.Core.Telegram.AdminID
}

func parseProgressArg(args []string) (uuid.UUID, bool) {
	if len(args) == 0 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimSpace(args[0]))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
