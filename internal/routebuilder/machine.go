// Package routebuilder implements the conversational state machine that
// lets privileged users assemble a multi-point route. All persistence is
// deferred to a single atomic commit when the route is finished, so an
// abandoned session leaves no partial rows behind.
package routebuilder

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"questbot/core/logger"
	"questbot/internal/apperr"
	"questbot/internal/models"
	"questbot/internal/storage"
)

// Button labels and commands of the conversation.
const (
	BtnStartBuilder   = "🛠️ Создать маршрут"
	BtnAddPoint       = "➕ Добавить точку"
	BtnFinish         = "✅ Готово"
	BtnChooseExisting = "Выбрать существующий"
	BtnConfirmPoint   = "✅ Подтвердить"
	BtnEditPoint      = "🔄 Изменить"
	BtnCancel         = "❌ Отмена"

	CmdNewQuest = "new"
	CmdSkip     = "skip"
	CmdCancel   = "cancel"
)

const suggestionLimit = 3

// Catalog is the quest lookup surface the machine needs.
type Catalog interface {
	ByExactName(ctx context.Context, name string) (*models.Quest, error)
	SuggestNames(ctx context.Context, input string, limit int) ([]string, error)
}

// RouteStore commits a completed draft atomically.
type RouteStore interface {
	CreateWithPoints(ctx context.Context, spec storage.RouteSpec) (*models.Route, error)
}

// transitionFn consumes one event in one state and yields the next state
// and the single outbound prompt of the transition.
type transitionFn func(ctx context.Context, d *Draft, ev Event) (State, Reply, error)

// Machine drives route builder conversations. The transition table is
// built once at construction; there is no global handler registry.
type Machine struct {
	catalog  Catalog
	routes   RouteStore
	sessions *sessions
	table    map[State]transitionFn
}

// New constructs the machine and its transition table.
func New(catalog Catalog, routes RouteStore) *Machine {
	m := &Machine{
		catalog:  catalog,
		routes:   routes,
		sessions: newSessions(),
	}
	m.table = map[State]transitionFn{
		StateNamingRoute:        m.onNamingRoute,
		StateDescribingRoute:    m.onDescribingRoute,
		StateAwaitingPointAction: m.onAwaitingPointAction,
		StateChoosingQuest:      m.onChoosingQuest,
		StateNamingNewQuest:     m.onNamingNewQuest,
		StateDescribingNewQuest: m.onDescribingNewQuest,
		StateLocatingNewQuest:   m.onLocatingNewQuest,
		StateEnteringHint:       m.onEnteringHint,
		StateAwaitingPhoto:      m.onAwaitingPhoto,
		StateAwaitingAudio:      m.onAwaitingAudio,
		StateConfirmingPoint:    m.onConfirmingPoint,
	}
	return m
}

// InProgress reports whether the user has an active session.
func (m *Machine) InProgress(userID int64) bool {
	return m.sessions.inProgress(userID)
}

// StateOf returns the current state of a user's session, or StateIdle.
func (m *Machine) StateOf(userID int64) State {
	sess, ok := m.sessions.get(userID)
	if !ok {
		return StateIdle
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state
}

// Start opens a session for a route builder. Non-builders are rejected
// with a permission error and no session is created.
func (m *Machine) Start(ctx context.Context, userID int64, isBuilder bool) (Reply, error) {
	if !isBuilder {
		return Reply{Text: "❌ У вас нет прав создавать маршруты."},
			apperr.PermissionDenied("route builder privilege required")
	}
	m.sessions.start(userID, StateNamingRoute)
	logger.Info(ctx, "fsm.routes", "fsm.start",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
	)
	return Reply{Text: "🛠️ Введите название нового маршрута:", RemoveKeyboard: true}, nil
}

// Handle feeds one inbound event to the user's session. Transitions of
// one session are serialized; a message arriving mid-transition waits.
func (m *Machine) Handle(ctx context.Context, userID int64, ev Event) (Reply, error) {
	sess, ok := m.sessions.get(userID)
	if !ok {
		return Reply{}, apperr.NotFound("no active route builder session")
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	// The session may have been cancelled while this event was queued.
	if current, ok := m.sessions.get(userID); !ok || current != sess {
		return Reply{}, apperr.NotFound("no active route builder session")
	}

	if isCancel(ev) {
		m.sessions.clear(userID)
		logger.Info(ctx, "fsm.routes", "fsm.cancel",
			slog.String("status", "ok"),
			slog.Int64("user_id", userID),
			slog.String("state", string(sess.state)),
		)
		return Reply{Text: "🚫 Создание маршрута отменено.", RemoveKeyboard: true}, nil
	}

	fn, ok := m.table[sess.state]
	if !ok {
		m.sessions.clear(userID)
		return Reply{}, fmt.Errorf("routebuilder: no transition for state %q", sess.state)
	}

	from := sess.state
	next, reply, err := fn(ctx, &sess.draft, ev)
	sess.state = next
	if next == StateIdle {
		m.sessions.clear(userID)
	}
	logger.Debug(ctx, "fsm.routes", "fsm.transition",
		slog.String("status", logger.Status(err)),
		slog.Int64("user_id", userID),
		slog.String("state", string(from)+"->"+string(next)),
		slog.Int("points", len(sess.draft.Points)),
	)
	return reply, err
}

func isCancel(ev Event) bool {
	switch e := ev.(type) {
	case CommandEvent:
		return e.Name == CmdCancel
	case TextEvent:
		return strings.TrimSpace(e.Content) == BtnCancel
	}
	return false
}

func (m *Machine) onNamingRoute(_ context.Context, d *Draft, ev Event) (State, Reply, error) {
	text, ok := ev.(TextEvent)
	if !ok || strings.TrimSpace(text.Content) == "" {
		return StateNamingRoute, Reply{Text: "Название маршрута не может быть пустым. Введите название:"},
			apperr.Validation("empty route name")
	}
	d.RouteName = strings.TrimSpace(text.Content)
	if len(d.Points) > 0 {
		// Renaming after a name conflict; the collected points survive.
		return StateAwaitingPointAction, Reply{
			Text:     fmt.Sprintf("Название обновлено на «%s». Что дальше?", d.RouteName),
			Keyboard: pointActionKeyboard(),
		}, nil
	}
	return StateDescribingRoute, Reply{Text: "🛠️ Отлично, теперь введите описание маршрута:"}, nil
}

func (m *Machine) onDescribingRoute(_ context.Context, d *Draft, ev Event) (State, Reply, error) {
	text, ok := ev.(TextEvent)
	if !ok {
		return StateDescribingRoute, Reply{Text: "Введите описание маршрута текстом:"},
			apperr.Validation("description must be text")
	}
	d.RouteDescription = text.Content
	d.Points = nil
	return StateAwaitingPointAction, Reply{
		Text:     "Описание принято. Что дальше?",
		Keyboard: pointActionKeyboard(),
	}, nil
}

func (m *Machine) onAwaitingPointAction(ctx context.Context, d *Draft, ev Event) (State, Reply, error) {
	text, ok := ev.(TextEvent)
	if !ok {
		return StateAwaitingPointAction, Reply{
			Text:     "Пожалуйста, используйте кнопки на экране: ➕ Добавить точку или ✅ Готово.",
			Keyboard: pointActionKeyboard(),
		}, nil
	}

	switch strings.TrimSpace(text.Content) {
	case BtnFinish:
		return m.finalize(ctx, d)
	case BtnAddPoint:
		return StateChoosingQuest, Reply{
			Text:     "Выберите существующий квест по названию или отправьте команду /new для создания нового квеста:",
			Keyboard: [][]string{{BtnChooseExisting, "/" + CmdNewQuest}, {BtnCancel}},
		}, nil
	default:
		return StateAwaitingPointAction, Reply{
			Text:     "Пожалуйста, используйте кнопки на экране: ➕ Добавить точку или ✅ Готово.",
			Keyboard: pointActionKeyboard(),
		}, nil
	}
}

// finalize commits the draft in one transaction. On a name conflict the
// draft survives so the user can rename and retry without re-entering points.
func (m *Machine) finalize(ctx context.Context, d *Draft) (State, Reply, error) {
	if len(d.Points) == 0 {
		return StateAwaitingPointAction, Reply{
			Text:     "⚠️ Сначала добавьте хотя бы одну точку маршрута, затем нажмите ✅ Готово.",
			Keyboard: pointActionKeyboard(),
		}, apperr.Validation("cannot finalize empty route")
	}

	route, err := m.routes.CreateWithPoints(ctx, d.Spec())
	if err != nil {
		if apperr.IsConflict(err) {
			return StateNamingRoute, Reply{
				Text: fmt.Sprintf("❌ Маршрут «%s» уже существует. Точки сохранены. Введите другое название маршрута:", d.RouteName),
			}, err
		}
		return StateAwaitingPointAction, Reply{
			Text:     "❌ Не удалось сохранить маршрут, попробуйте ещё раз.",
			Keyboard: pointActionKeyboard(),
		}, err
	}

	reply := Reply{
		Text:           fmt.Sprintf("✅ Маршрут «%s» успешно создан! Точек в маршруте: %d.", route.Name, len(d.Points)),
		RemoveKeyboard: true,
	}
	return StateIdle, reply, nil
}

func (m *Machine) onChoosingQuest(ctx context.Context, d *Draft, ev Event) (State, Reply, error) {
	switch e := ev.(type) {
	case CommandEvent:
		if e.Name == CmdNewQuest {
			return StateNamingNewQuest, Reply{Text: "Введите название нового квеста:", RemoveKeyboard: true}, nil
		}
	case TextEvent:
		name := strings.TrimSpace(e.Content)
		if name == "" || name == BtnChooseExisting {
			return StateChoosingQuest, Reply{Text: "Введите точное название квеста:"}, nil
		}
		quest, err := m.catalog.ByExactName(ctx, name)
		if err != nil {
			if apperr.IsNotFound(err) {
				return StateChoosingQuest, Reply{Text: m.missReply(ctx, name)}, err
			}
			return StateChoosingQuest, Reply{Text: "❌ Не удалось выполнить поиск, попробуйте ещё раз."}, err
		}
		if d.HasQuest(quest.ID) {
			return StateChoosingQuest, Reply{
				Text: fmt.Sprintf("⚠️ Квест «%s» уже есть в этом маршруте. Выберите другой квест или отправьте /new.", quest.Name),
			}, apperr.Validation("quest already present in route")
		}
		id := quest.ID
		d.Current = PointDraft{QuestID: &id, QuestName: quest.Name}
		return StateEnteringHint, Reply{Text: "Введите текст подсказки для этой точки или отправьте /skip, чтобы пропустить:"}, nil
	}
	return StateChoosingQuest, Reply{Text: "Введите название квеста или отправьте /new."}, nil
}

// missReply builds the lookup-miss prompt, with advisory fuzzy suggestions
// when the catalog has names resembling the input.
func (m *Machine) missReply(ctx context.Context, input string) string {
	msg := "❌ Квест с таким названием не найден. Пожалуйста, введите корректное название из списка или отправьте /new."
	suggestions, err := m.catalog.SuggestNames(ctx, input, suggestionLimit)
	if err != nil || len(suggestions) == 0 {
		return msg
	}
	return msg + "\n\nВозможно, вы имели в виду:\n• " + strings.Join(suggestions, "\n• ")
}

func (m *Machine) onNamingNewQuest(_ context.Context, d *Draft, ev Event) (State, Reply, error) {
	text, ok := ev.(TextEvent)
	if !ok || strings.TrimSpace(text.Content) == "" {
		return StateNamingNewQuest, Reply{Text: "Название квеста не может быть пустым. Введите название:"},
			apperr.Validation("empty quest name")
	}
	name := strings.TrimSpace(text.Content)
	if d.HasNewQuestNamed(name) {
		return StateNamingNewQuest, Reply{
			Text: fmt.Sprintf("⚠️ Квест «%s» уже добавлен в этот маршрут. Введите другое название:", name),
		}, apperr.Validation("new quest already present in route")
	}
	d.Current = PointDraft{NewQuest: &NewQuestDraft{Name: name}}
	return StateDescribingNewQuest, Reply{Text: "Введите описание квеста:"}, nil
}

func (m *Machine) onDescribingNewQuest(_ context.Context, d *Draft, ev Event) (State, Reply, error) {
	text, ok := ev.(TextEvent)
	if !ok {
		return StateDescribingNewQuest, Reply{Text: "Введите описание квеста текстом:"},
			apperr.Validation("description must be text")
	}
	d.Current.NewQuest.Description = text.Content
	return StateLocatingNewQuest, Reply{Text: "Укажите локацию квеста текстом или отправьте точку на карте:"}, nil
}

func (m *Machine) onLocatingNewQuest(_ context.Context, d *Draft, ev Event) (State, Reply, error) {
	switch e := ev.(type) {
	case TextEvent:
		if strings.TrimSpace(e.Content) == "" {
			break
		}
		d.Current.NewQuest.Location = strings.TrimSpace(e.Content)
		return StateEnteringHint, Reply{Text: "Введите текст подсказки для этой точки или отправьте /skip, чтобы пропустить:"}, nil
	case LocationEvent:
		lat, lon := e.Lat, e.Lon
		d.Current.NewQuest.Location = fmt.Sprintf("%.6f, %.6f", lat, lon)
		d.Current.NewQuest.Latitude = &lat
		d.Current.NewQuest.Longitude = &lon
		d.Current.Latitude = &lat
		d.Current.Longitude = &lon
		return StateEnteringHint, Reply{Text: "Введите текст подсказки для этой точки или отправьте /skip, чтобы пропустить:"}, nil
	}
	return StateLocatingNewQuest, Reply{Text: "Укажите локацию квеста текстом или отправьте точку на карте:"},
		apperr.Validation("location required")
}

func (m *Machine) onEnteringHint(_ context.Context, d *Draft, ev Event) (State, Reply, error) {
	switch e := ev.(type) {
	case CommandEvent:
		if e.Name == CmdSkip {
			d.Current.HintText = ""
			return StateAwaitingPhoto, Reply{Text: "Отправьте фото для этой точки или /skip, чтобы пропустить:"}, nil
		}
	case TextEvent:
		d.Current.HintText = e.Content
		return StateAwaitingPhoto, Reply{Text: "Отправьте фото для этой точки или /skip, чтобы пропустить:"}, nil
	}
	return StateEnteringHint, Reply{Text: "Введите текст подсказки или отправьте /skip:"}, nil
}

func (m *Machine) onAwaitingPhoto(_ context.Context, d *Draft, ev Event) (State, Reply, error) {
	switch e := ev.(type) {
	case CommandEvent:
		if e.Name == CmdSkip {
			return StateAwaitingAudio, Reply{Text: "Отправьте аудио для этой точки или /skip, чтобы пропустить:"}, nil
		}
	case PhotoEvent:
		ref := e.Ref
		d.Current.Photo = &ref
		return StateAwaitingAudio, Reply{Text: "Отправьте аудио для этой точки или /skip, чтобы пропустить:"}, nil
	}
	return StateAwaitingPhoto, Reply{Text: "Отправьте фото или /skip:"}, nil
}

func (m *Machine) onAwaitingAudio(_ context.Context, d *Draft, ev Event) (State, Reply, error) {
	switch e := ev.(type) {
	case CommandEvent:
		if e.Name != CmdSkip {
			break
		}
		return StateConfirmingPoint, Reply{
			Text:     pointSummary(d),
			Keyboard: [][]string{{BtnConfirmPoint, BtnEditPoint}, {BtnCancel}},
		}, nil
	case AudioEvent:
		ref := e.Ref
		d.Current.Audio = &ref
		return StateConfirmingPoint, Reply{
			Text:     pointSummary(d),
			Keyboard: [][]string{{BtnConfirmPoint, BtnEditPoint}, {BtnCancel}},
		}, nil
	}
	return StateAwaitingAudio, Reply{Text: "Отправьте аудио или /skip:"}, nil
}

func (m *Machine) onConfirmingPoint(_ context.Context, d *Draft, ev Event) (State, Reply, error) {
	text, ok := ev.(TextEvent)
	if !ok {
		return StateConfirmingPoint, Reply{Text: "Подтвердите точку кнопкой ✅ Подтвердить или выберите 🔄 Изменить."}, nil
	}

	switch strings.TrimSpace(text.Content) {
	case BtnConfirmPoint:
		order := d.ConfirmCurrent()
		return StateAwaitingPointAction, Reply{
			Text:     fmt.Sprintf("Точка №%d добавлена. Что дальше?", order),
			Keyboard: pointActionKeyboard(),
		}, nil
	case BtnEditPoint:
		d.DiscardCurrent()
		return StateChoosingQuest, Reply{
			Text:     "Хорошо, соберём точку заново. Выберите существующий квест по названию или отправьте /new:",
			Keyboard: [][]string{{BtnChooseExisting, "/" + CmdNewQuest}, {BtnCancel}},
		}, nil
	default:
		return StateConfirmingPoint, Reply{Text: "Подтвердите точку кнопкой ✅ Подтвердить или выберите 🔄 Изменить."}, nil
	}
}

func pointActionKeyboard() [][]string {
	return [][]string{{BtnAddPoint, BtnFinish}, {BtnCancel}}
}

func pointSummary(d *Draft) string {
	var b strings.Builder
	b.WriteString("Проверьте точку:\n")
	name := d.Current.QuestName
	if d.Current.NewQuest != nil {
		name = d.Current.NewQuest.Name + " (новый квест)"
	}
	fmt.Fprintf(&b, "🎯 Квест: %s\n", name)
	if d.Current.HintText != "" {
		fmt.Fprintf(&b, "💡 Подсказка: %s\n", d.Current.HintText)
	}
	if d.Current.Photo != nil {
		b.WriteString("🖼 Фото: прикреплено\n")
	}
	if d.Current.Audio != nil {
		b.WriteString("🎵 Аудио: прикреплено\n")
	}
	fmt.Fprintf(&b, "\nДобавить точку №%d в маршрут?", len(d.Points)+1)
	return b.String()
}
