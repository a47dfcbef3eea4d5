package bot

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"log/slog"

	"questbot/core/logger"
	"questbot/core/telegram/format"
	"questbot/core/telegram/helpers"
	"questbot/core/telegram/keyboard"
	"questbot/internal/apperr"
	"questbot/internal/models"
	"questbot/internal/routebuilder"
)

// User-facing button labels of the main menu.
const (
	btnGetQuest   = "🎯 Получить квест"
	btnPromoCodes = "🎁 Мои промокоды"
	btnSharePhone = "📱 Отправить номер телефона"
)

func (a *App) mainKeyboard(user *models.User) *tele.ReplyMarkup {
	rows := [][]string{{btnGetQuest, btnPromoCodes}}
	if user != nil && user.IsRouteBuilder {
		rows = append(rows, []string{routebuilder.BtnStartBuilder})
	}
	return keyboard.ReplyButtons(rows...)
}

func contactKeyboard() *tele.ReplyMarkup {
	return keyboard.ContactRequest(btnSharePhone)
}

func senderName(c tele.Context) string {
	s := c.Sender()
	if s == nil {
		return ""
	}
	name := strings.TrimSpace(s.FirstName + " " + s.LastName)
	if name == "" {
		name = s.Username
	}
	return name
}

// handleStart creates the user lazily and shows either the contact
// request or the main keyboard.
func (a *App) handleStart(c tele.Context) error {
	ctx := helpers.BuildContext(c)

	user, _, err := a.users.GetOrCreate(ctx, c.Sender().ID, senderName(c))
	if err != nil {
		logger.Error(ctx, "bot", "start.failed", slog.String("err", err.Error()))
		return helpers.SendText(c, "❌ Что-то пошло не так, попробуйте позже.")
	}

	if !user.IsVerified {
		return helpers.SendKeyboard(c,
			"👋 Добро пожаловать! Чтобы участвовать в квестах, поделитесь номером телефона.",
			contactKeyboard())
	}
	return helpers.SendKeyboard(c,
		fmt.Sprintf("👋 С возвращением, %s!", user.Name),
		a.mainKeyboard(user))
}

// handleContact verifies the user with the shared phone number. A contact
// forwarded from another account does not count.
func (a *App) handleContact(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	contact := c.Message().Contact
	if contact == nil {
		return nil
	}
	if contact.UserID != c.Sender().ID {
		return helpers.SendText(c, "Пожалуйста, отправьте свой собственный номер через кнопку.")
	}

	user, err := a.users.Verify(ctx, c.Sender().ID, contact.PhoneNumber)
	if err != nil {
		if apperr.IsNotFound(err) {
			return helpers.SendText(c, "Сначала отправьте /start.")
		}
		logger.Error(ctx, "bot", "verify.failed", slog.String("err", err.Error()))
		return helpers.SendText(c, "❌ Не удалось сохранить номер, попробуйте позже.")
	}

	return helpers.SendKeyboard(c,
		"✅ Номер подтверждён! Теперь вам доступны квесты.",
		a.mainKeyboard(user))
}

// requireVerified resolves the sender to a verified user or answers with
// the appropriate prompt and returns nil.
func (a *App) requireVerified(c tele.Context) (*models.User, error) {
	ctx := helpers.BuildContext(c)
	user, err := helpers.CurrentUser[*models.User](ctx, a.users, c.Sender().ID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, helpers.SendText(c, "Сначала отправьте /start.")
		}
		return nil, err
	}
	if !user.IsVerified {
		return nil, helpers.SendKeyboard(c,
			"Сначала подтвердите номер телефона.", contactKeyboard())
	}
	return user, nil
}

// handleGetQuest offers the first active quest the user has not attempted.
func (a *App) handleGetQuest(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	user, err := a.requireVerified(c)
	if user == nil {
		return err
	}

	quest, err := a.quests.FirstUnattemptedActiveFor(ctx, user.ID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return helpers.SendText(c, "🎉 Доступных квестов пока нет. Загляните позже!")
		}
		logger.Error(ctx, "bot", "quest.offer.failed", slog.String("err", err.Error()))
		return helpers.SendText(c, "❌ Не удалось подобрать квест, попробуйте позже.")
	}

	a.offers.set(c.Sender().ID, quest.ID)
	logger.Info(ctx, "bot", "quest.offer",
		slog.String("status", "ok"),
		slog.String("quest_id", quest.ID.String()),
	)

	text := fmt.Sprintf("🎯 Ваш квест: %s\n📍 %s\n\n%s\n\nКогда выполните задание, отправьте фото сюда.",
		quest.Name, quest.Location, quest.Description)
	if err := helpers.SendText(c, text); err != nil {
		return err
	}

	if quest.HasCoordinates() {
		lat := format.DerefFloat64(quest.Latitude, 0)
		lon := format.DerefFloat64(quest.Longitude, 0)
		if err := helpers.SendLocation(c, lat, lon); err != nil {
			// The offer stands even when the pin cannot be delivered.
			tErr := apperr.Transport("location pin delivery failed", err)
			logger.Warn(ctx, "bot", "quest.pin.failed",
				slog.String("quest_id", quest.ID.String()),
				slog.String("err", tErr.Error()),
				slog.String("err_code", apperr.CodeOf(tErr)),
			)
			return helpers.SendText(c, "📍 Не удалось отправить геометку, ориентируйтесь по описанию.")
		}
	}
	return nil
}

// handlePhoto records a proof submission for the currently offered quest
// and forwards it to the admin chat for review.
func (a *App) handlePhoto(c tele.Context) error {
	if a.fsm.InProgress(c.Sender().ID) {
		return a.fsm.ManagerHandler(c)
	}

	ctx := helpers.BuildContext(c)
	user, err := a.requireVerified(c)
	if user == nil {
		return err
	}

	questID, ok := a.offers.get(c.Sender().ID)
	if !ok {
		return helpers.SendText(c, "Сначала получите квест через кнопку 🎯 Получить квест.")
	}

	photo := c.Message().Photo
	if photo == nil {
		return nil
	}

	record, err := a.progress.Create(ctx, user.ID, questID, photo.FileID)
	if err != nil {
		if apperr.IsConflict(err) {
			a.offers.clear(c.Sender().ID)
			return helpers.SendText(c, "⚠️ Вы уже отправляли фото по этому квесту. Возьмите следующий!")
		}
		logger.Error(ctx, "bot", "submission.failed", slog.String("err", err.Error()))
		return helpers.SendText(c, "❌ Не удалось отправить фото на проверку, попробуйте ещё раз.")
	}
	a.offers.clear(c.Sender().ID)

	if err := a.notifyAdmins(c, user, record.QuestID, record.ID.String(), photo.FileID); err != nil {
		logger.Error(ctx, "bot", "submission.notify.failed",
			slog.String("progress_id", record.ID.String()),
			slog.String("err", err.Error()),
		)
	}

	return helpers.SendText(c, "📨 Фото отправлено на проверку. Мы сообщим о результате!")
}

// handlePromoCodes lists promo codes earned through approved quests.
func (a *App) handlePromoCodes(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	user, err := a.requireVerified(c)
	if user == nil {
		return err
	}

	rewards, err := a.progress.RewardsFor(ctx, user.ID)
	if err != nil {
		logger.Error(ctx, "bot", "rewards.failed", slog.String("err", err.Error()))
		return helpers.SendText(c, "❌ Не удалось получить промокоды, попробуйте позже.")
	}
	if len(rewards) == 0 {
		return helpers.SendText(c, "🎁 У вас пока нет промокодов. Выполняйте квесты, чтобы их заработать!")
	}

	var b strings.Builder
	b.WriteString("🎁 Ваши промокоды:\n")
	for _, r := range rewards {
		name := r.QuestName
		if escaped, escErr := format.EscapeMarkdown(name, format.MarkdownV1, ""); escErr == nil {
			name = escaped
		}
		fmt.Fprintf(&b, "\n%s — `%s`", name, r.Code)
	}
	return helpers.SendMD(c, b.String())
}

// handleCreateRoute opens a route builder session for privileged users.
func (a *App) handleCreateRoute(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	user, err := helpers.CurrentUser[*models.User](ctx, a.users, c.Sender().ID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return helpers.SendText(c, "Сначала отправьте /start.")
		}
		return err
	}

	reply, err := a.machine.Start(ctx, c.Sender().ID, user.IsRouteBuilder)
	if sendErr := sendReply(c, reply); sendErr != nil {
		return sendErr
	}
	if err != nil && apperr.CodeOf(err) == "" {
		return err
	}
	return nil
}

// handleUnknownText answers free text that matched nothing.
func (a *App) handleUnknownText(c tele.Context) error {
	return helpers.SendText(c, "🤔 Не понимаю. Используйте кнопки меню или /start.")
}
