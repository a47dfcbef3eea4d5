package routebuilder

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"questbot/internal/apperr"
	"questbot/internal/models"
	"questbot/internal/storage"
)

type fakeCatalog struct {
	quests      map[string]*models.Quest
	suggestions []string
}

func (f *fakeCatalog) ByExactName(_ context.Context, name string) (*models.Quest, error) {
	q, ok := f.quests[name]
	if !ok {
		return nil, apperr.NotFound("quest not found")
	}
	return q, nil
}

func (f *fakeCatalog) SuggestNames(_ context.Context, _ string, limit int) ([]string, error) {
	if limit < len(f.suggestions) {
		return f.suggestions[:limit], nil
	}
	return f.suggestions, nil
}

type fakeRouteStore struct {
	created []storage.RouteSpec
	err     error
}

func (f *fakeRouteStore) CreateWithPoints(_ context.Context, spec storage.RouteSpec) (*models.Route, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, spec)
	return &models.Route{ID: uuid.New(), Name: spec.Name, Description: spec.Description}, nil
}

func questNamed(name string) *models.Quest {
	return &models.Quest{ID: uuid.New(), Name: name, IsActive: true}
}

func newTestMachine(catalog *fakeCatalog, store *fakeRouteStore) *Machine {
	if catalog == nil {
		catalog = &fakeCatalog{quests: map[string]*models.Quest{}}
	}
	if store == nil {
		store = &fakeRouteStore{}
	}
	return New(catalog, store)
}

func handle(t *testing.T, m *Machine, userID int64, ev Event) Reply {
	t.Helper()
	reply, err := m.Handle(context.Background(), userID, ev)
	if err != nil {
		t.Fatalf("Handle(%T) in state %s: %v", ev, m.StateOf(userID), err)
	}
	return reply
}

// addExistingPoint walks a point through selection, hint, photo and audio
// skips, and confirmation.
func addExistingPoint(t *testing.T, m *Machine, userID int64, questName string) {
	t.Helper()
	handle(t, m, userID, TextEvent{Content: BtnAddPoint})
	handle(t, m, userID, TextEvent{Content: questName})
	handle(t, m, userID, CommandEvent{Name: CmdSkip})
	handle(t, m, userID, CommandEvent{Name: CmdSkip})
	handle(t, m, userID, CommandEvent{Name: CmdSkip})
	handle(t, m, userID, TextEvent{Content: BtnConfirmPoint})
}

func TestMachineFullFlowExistingQuests(t *testing.T) {
	catalog := &fakeCatalog{quests: map[string]*models.Quest{
		"Старая площадь": questNamed("Старая площадь"),
		"Набережная":     questNamed("Набережная"),
		"Фонтан":         questNamed("Фонтан"),
	}}
	store := &fakeRouteStore{}
	m := newTestMachine(catalog, store)
	const userID int64 = 7

	if _, err := m.Start(context.Background(), userID, true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	handle(t, m, userID, TextEvent{Content: "Тур по городу"})
	handle(t, m, userID, TextEvent{Content: "Прогулка по центру"})

	for _, name := range []string{"Старая площадь", "Набережная", "Фонтан"} {
		addExistingPoint(t, m, userID, name)
	}

	reply := handle(t, m, userID, TextEvent{Content: BtnFinish})
	if !strings.Contains(reply.Text, "Тур по городу") {
		t.Errorf("finish reply %q does not mention the route name", reply.Text)
	}
	if m.InProgress(userID) {
		t.Error("session still active after finish")
	}

	if len(store.created) != 1 {
		t.Fatalf("routes created = %d, want 1", len(store.created))
	}
	spec := store.created[0]
	if spec.Name != "Тур по городу" || spec.Description != "Прогулка по центру" {
		t.Errorf("spec = %q / %q", spec.Name, spec.Description)
	}
	if len(spec.Points) != 3 {
		t.Fatalf("points = %d, want 3", len(spec.Points))
	}
	for i, want := range []string{"Старая площадь", "Набережная", "Фонтан"} {
		got := spec.Points[i].QuestID
		if got == nil || *got != catalog.quests[want].ID {
			t.Errorf("point %d quest = %v, want %s", i+1, got, want)
		}
	}
}

func TestMachineRejectsEmptyRouteFinish(t *testing.T) {
	store := &fakeRouteStore{}
	m := newTestMachine(nil, store)
	const userID int64 = 7

	m.Start(context.Background(), userID, true)
	handle(t, m, userID, TextEvent{Content: "Пустой"})
	handle(t, m, userID, TextEvent{Content: "Без точек"})

	_, err := m.Handle(context.Background(), userID, TextEvent{Content: BtnFinish})
	if !apperr.IsValidation(err) {
		t.Fatalf("finish with zero points: err = %v, want validation", err)
	}
	if len(store.created) != 0 {
		t.Errorf("routes created = %d, want 0", len(store.created))
	}
	if got := m.StateOf(userID); got != StateAwaitingPointAction {
		t.Errorf("state = %s, want %s", got, StateAwaitingPointAction)
	}
}

func TestMachineCancelPersistsNothing(t *testing.T) {
	catalog := &fakeCatalog{quests: map[string]*models.Quest{"Фонтан": questNamed("Фонтан")}}
	store := &fakeRouteStore{}
	m := newTestMachine(catalog, store)
	const userID int64 = 7

	m.Start(context.Background(), userID, true)
	handle(t, m, userID, TextEvent{Content: "Черновик"})
	handle(t, m, userID, TextEvent{Content: "Будет отменён"})
	addExistingPoint(t, m, userID, "Фонтан")

	reply := handle(t, m, userID, CommandEvent{Name: CmdCancel})
	if !reply.RemoveKeyboard {
		t.Error("cancel reply keeps the reply keyboard")
	}
	if m.InProgress(userID) {
		t.Error("session survives cancel")
	}
	if len(store.created) != 0 {
		t.Errorf("routes created = %d, want 0", len(store.created))
	}

	if _, err := m.Handle(context.Background(), userID, TextEvent{Content: "привет"}); !apperr.IsNotFound(err) {
		t.Errorf("Handle after cancel: err = %v, want not found", err)
	}
}

func TestMachineCancelButtonWorksInEveryState(t *testing.T) {
	catalog := &fakeCatalog{quests: map[string]*models.Quest{"Фонтан": questNamed("Фонтан")}}

	steps := []struct {
		state State
		walk  func(t *testing.T, m *Machine, userID int64)
	}{
		{StateNamingRoute, func(t *testing.T, m *Machine, userID int64) {}},
		{StateDescribingRoute, func(t *testing.T, m *Machine, userID int64) {
			handle(t, m, userID, TextEvent{Content: "Имя"})
		}},
		{StateChoosingQuest, func(t *testing.T, m *Machine, userID int64) {
			handle(t, m, userID, TextEvent{Content: "Имя"})
			handle(t, m, userID, TextEvent{Content: "Описание"})
			handle(t, m, userID, TextEvent{Content: BtnAddPoint})
		}},
		{StateNamingNewQuest, func(t *testing.T, m *Machine, userID int64) {
			handle(t, m, userID, TextEvent{Content: "Имя"})
			handle(t, m, userID, TextEvent{Content: "Описание"})
			handle(t, m, userID, TextEvent{Content: BtnAddPoint})
			handle(t, m, userID, CommandEvent{Name: CmdNewQuest})
		}},
	}

	for _, tc := range steps {
		t.Run(string(tc.state), func(t *testing.T) {
			m := newTestMachine(catalog, nil)
			const userID int64 = 7
			m.Start(context.Background(), userID, true)
			tc.walk(t, m, userID)
			if got := m.StateOf(userID); got != tc.state {
				t.Fatalf("walk ended in %s, want %s", got, tc.state)
			}
			handle(t, m, userID, TextEvent{Content: BtnCancel})
			if m.InProgress(userID) {
				t.Error("session survives cancel")
			}
		})
	}
}

func TestMachineStartRequiresBuilderPrivilege(t *testing.T) {
	m := newTestMachine(nil, nil)

	_, err := m.Start(context.Background(), 7, false)
	if !apperr.IsPermissionDenied(err) {
		t.Fatalf("Start without privilege: err = %v, want permission denied", err)
	}
	if m.InProgress(7) {
		t.Error("session created for non-builder")
	}
}

func TestMachineRejectsDuplicateQuest(t *testing.T) {
	catalog := &fakeCatalog{quests: map[string]*models.Quest{"Фонтан": questNamed("Фонтан")}}
	m := newTestMachine(catalog, nil)
	const userID int64 = 7

	m.Start(context.Background(), userID, true)
	handle(t, m, userID, TextEvent{Content: "Имя"})
	handle(t, m, userID, TextEvent{Content: "Описание"})
	addExistingPoint(t, m, userID, "Фонтан")

	handle(t, m, userID, TextEvent{Content: BtnAddPoint})
	_, err := m.Handle(context.Background(), userID, TextEvent{Content: "Фонтан"})
	if !apperr.IsValidation(err) {
		t.Fatalf("duplicate quest: err = %v, want validation", err)
	}
	if got := m.StateOf(userID); got != StateChoosingQuest {
		t.Errorf("state = %s, want %s", got, StateChoosingQuest)
	}
}

func TestMachineRetainsDraftOnNameConflict(t *testing.T) {
	catalog := &fakeCatalog{quests: map[string]*models.Quest{"Фонтан": questNamed("Фонтан")}}
	store := &fakeRouteStore{err: apperr.Conflict("route name already taken", nil)}
	m := newTestMachine(catalog, store)
	const userID int64 = 7

	m.Start(context.Background(), userID, true)
	handle(t, m, userID, TextEvent{Content: "Занятое имя"})
	handle(t, m, userID, TextEvent{Content: "Описание"})
	addExistingPoint(t, m, userID, "Фонтан")

	_, err := m.Handle(context.Background(), userID, TextEvent{Content: BtnFinish})
	if !apperr.IsConflict(err) {
		t.Fatalf("finish: err = %v, want conflict", err)
	}
	if got := m.StateOf(userID); got != StateNamingRoute {
		t.Fatalf("state after conflict = %s, want %s", got, StateNamingRoute)
	}

	store.err = nil
	handle(t, m, userID, TextEvent{Content: "Свободное имя"})
	handle(t, m, userID, TextEvent{Content: BtnFinish})

	if len(store.created) != 1 {
		t.Fatalf("routes created = %d, want 1", len(store.created))
	}
	spec := store.created[0]
	if spec.Name != "Свободное имя" {
		t.Errorf("route name = %q, want renamed", spec.Name)
	}
	if spec.Description != "Описание" || len(spec.Points) != 1 {
		t.Errorf("draft lost on rename: %q, %d points", spec.Description, len(spec.Points))
	}
}

func TestMachineSuggestsOnLookupMiss(t *testing.T) {
	catalog := &fakeCatalog{
		quests:      map[string]*models.Quest{},
		suggestions: []string{"Старая площадь", "Старый мост"},
	}
	m := newTestMachine(catalog, nil)
	const userID int64 = 7

	m.Start(context.Background(), userID, true)
	handle(t, m, userID, TextEvent{Content: "Имя"})
	handle(t, m, userID, TextEvent{Content: "Описание"})
	handle(t, m, userID, TextEvent{Content: BtnAddPoint})

	reply, err := m.Handle(context.Background(), userID, TextEvent{Content: "Старя площадь"})
	if !apperr.IsNotFound(err) {
		t.Fatalf("lookup miss: err = %v, want not found", err)
	}
	if !strings.Contains(reply.Text, "Старая площадь") || !strings.Contains(reply.Text, "Старый мост") {
		t.Errorf("miss reply %q lacks suggestions", reply.Text)
	}
	if got := m.StateOf(userID); got != StateChoosingQuest {
		t.Errorf("state = %s, want %s", got, StateChoosingQuest)
	}
}

func TestMachineDefersNewQuestCreation(t *testing.T) {
	store := &fakeRouteStore{}
	m := newTestMachine(nil, store)
	const userID int64 = 7

	m.Start(context.Background(), userID, true)
	handle(t, m, userID, TextEvent{Content: "Новые места"})
	handle(t, m, userID, TextEvent{Content: "Только новые квесты"})

	handle(t, m, userID, TextEvent{Content: BtnAddPoint})
	handle(t, m, userID, CommandEvent{Name: CmdNewQuest})
	handle(t, m, userID, TextEvent{Content: "Тайный дворик"})
	handle(t, m, userID, TextEvent{Content: "Найдите дворик"})
	handle(t, m, userID, LocationEvent{Lat: 55.75, Lon: 37.61})
	handle(t, m, userID, TextEvent{Content: "Ищите арку"})
	handle(t, m, userID, PhotoEvent{Ref: "photo-file-id"})
	handle(t, m, userID, CommandEvent{Name: CmdSkip})
	handle(t, m, userID, TextEvent{Content: BtnConfirmPoint})

	if len(store.created) != 0 {
		t.Fatal("route persisted before finish")
	}

	handle(t, m, userID, TextEvent{Content: BtnFinish})
	if len(store.created) != 1 {
		t.Fatalf("routes created = %d, want 1", len(store.created))
	}
	point := store.created[0].Points[0]
	if point.QuestID != nil {
		t.Error("new-quest point carries an existing quest id")
	}
	if point.NewQuest == nil || point.NewQuest.Name != "Тайный дворик" {
		t.Fatalf("new quest spec = %+v", point.NewQuest)
	}
	if point.NewQuest.Latitude == nil || *point.NewQuest.Latitude != 55.75 {
		t.Errorf("latitude = %v, want 55.75", point.NewQuest.Latitude)
	}
	if point.HintText != "Ищите арку" {
		t.Errorf("hint = %q", point.HintText)
	}
	if point.Photo == nil || *point.Photo != "photo-file-id" {
		t.Errorf("photo = %v", point.Photo)
	}
	if point.Audio != nil {
		t.Errorf("audio = %v, want skipped", point.Audio)
	}
}

func TestMachineRejectsDuplicateNewQuestName(t *testing.T) {
	m := newTestMachine(nil, nil)
	const userID int64 = 7

	m.Start(context.Background(), userID, true)
	handle(t, m, userID, TextEvent{Content: "Имя"})
	handle(t, m, userID, TextEvent{Content: "Описание"})

	handle(t, m, userID, TextEvent{Content: BtnAddPoint})
	handle(t, m, userID, CommandEvent{Name: CmdNewQuest})
	handle(t, m, userID, TextEvent{Content: "Дворик"})
	handle(t, m, userID, TextEvent{Content: "Описание квеста"})
	handle(t, m, userID, TextEvent{Content: "Центр"})
	handle(t, m, userID, CommandEvent{Name: CmdSkip})
	handle(t, m, userID, CommandEvent{Name: CmdSkip})
	handle(t, m, userID, CommandEvent{Name: CmdSkip})
	handle(t, m, userID, TextEvent{Content: BtnConfirmPoint})

	handle(t, m, userID, TextEvent{Content: BtnAddPoint})
	handle(t, m, userID, CommandEvent{Name: CmdNewQuest})
	_, err := m.Handle(context.Background(), userID, TextEvent{Content: "Дворик"})
	if !apperr.IsValidation(err) {
		t.Fatalf("duplicate new quest name: err = %v, want validation", err)
	}
}

func TestMachineEditDiscardsOnlyCurrentPoint(t *testing.T) {
	catalog := &fakeCatalog{quests: map[string]*models.Quest{
		"Фонтан": questNamed("Фонтан"),
		"Мост":   questNamed("Мост"),
	}}
	store := &fakeRouteStore{}
	m := newTestMachine(catalog, store)
	const userID int64 = 7

	m.Start(context.Background(), userID, true)
	handle(t, m, userID, TextEvent{Content: "Имя"})
	handle(t, m, userID, TextEvent{Content: "Описание"})
	addExistingPoint(t, m, userID, "Фонтан")

	handle(t, m, userID, TextEvent{Content: BtnAddPoint})
	handle(t, m, userID, TextEvent{Content: "Мост"})
	handle(t, m, userID, TextEvent{Content: "старая подсказка"})
	handle(t, m, userID, CommandEvent{Name: CmdSkip})
	handle(t, m, userID, CommandEvent{Name: CmdSkip})
	handle(t, m, userID, TextEvent{Content: BtnEditPoint})

	if got := m.StateOf(userID); got != StateChoosingQuest {
		t.Fatalf("state after edit = %s, want %s", got, StateChoosingQuest)
	}

	handle(t, m, userID, TextEvent{Content: "Мост"})
	handle(t, m, userID, TextEvent{Content: "новая подсказка"})
	handle(t, m, userID, CommandEvent{Name: CmdSkip})
	handle(t, m, userID, CommandEvent{Name: CmdSkip})
	handle(t, m, userID, TextEvent{Content: BtnConfirmPoint})
	handle(t, m, userID, TextEvent{Content: BtnFinish})

	if len(store.created) != 1 {
		t.Fatalf("routes created = %d, want 1", len(store.created))
	}
	points := store.created[0].Points
	if len(points) != 2 {
		t.Fatalf("points = %d, want 2", len(points))
	}
	if points[1].HintText != "новая подсказка" {
		t.Errorf("hint = %q, want the re-entered one", points[1].HintText)
	}
}

func TestMachineUnexpectedEventRepromptsWithoutAdvancing(t *testing.T) {
	m := newTestMachine(nil, nil)
	const userID int64 = 7

	m.Start(context.Background(), userID, true)
	handle(t, m, userID, TextEvent{Content: "Имя"})
	handle(t, m, userID, TextEvent{Content: "Описание"})

	reply := handle(t, m, userID, PhotoEvent{Ref: "unexpected"})
	if reply.Text == "" {
		t.Error("no re-prompt for unexpected event")
	}
	if got := m.StateOf(userID); got != StateAwaitingPointAction {
		t.Errorf("state = %s, want %s", got, StateAwaitingPointAction)
	}
}
