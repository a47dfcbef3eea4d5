// Package bot wires the quest bot application: storage repositories, the
// route builder machine, command registry, and the Telegram runtime.
package bot

import (
	"context"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"questbot/core/bootstrap"
	coretelegram "questbot/core/telegram"
	"questbot/core/telegram/commands"
	"questbot/core/telegram/router"
	"questbot/core/telegram/ui"
	"questbot/internal/config"
	"questbot/internal/models"
	"questbot/internal/routebuilder"
	"questbot/internal/seed"
	"questbot/internal/storage"
)

// progressStore is the slice of the progress repository the flows use.
type progressStore interface {
	Create(ctx context.Context, userID, questID uuid.UUID, photo string) (*models.Progress, error)
	Approve(ctx context.Context, id uuid.UUID) (*models.Progress, *models.PromoCode, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*models.Progress, error)
	RewardsFor(ctx context.Context, userID uuid.UUID) ([]models.RewardedQuest, error)
}

// questCatalog is the slice of the quest repository the flows use.
type questCatalog interface {
	ByID(ctx context.Context, id uuid.UUID) (*models.Quest, error)
	FirstUnattemptedActiveFor(ctx context.Context, userID uuid.UUID) (*models.Quest, error)
}

// App aggregates the application's long-lived components.
type App struct {
	cfg *config.Config

	users    *storage.Users
	quests   questCatalog
	progress progressStore

	machine *routebuilder.Machine
	fsm     *fsmAdapter
	offers  *offers
}

// New runs the bootstrap pipeline (logger, database, migrations, seeding)
// and builds the application graph.
func New(cfg *config.Config) (*App, error) {
	var seeders []bootstrap.Seeder
	if cfg.Quests.SeedFile != "" {
		seeders = append(seeders, seed.New(cfg.Quests.SeedFile))
	}

	result, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Seeders:  seeders,
	})
	if err != nil {
		return nil, err
	}

	quests := storage.NewQuests(result.DB)
	routes := storage.NewRoutes(result.DB)
	app := &App{
		cfg:      cfg,
		users:    storage.NewUsers(result.DB),
		quests:   quests,
		progress: storage.NewProgress(result.DB),
		offers:   newOffers(),
	}
	app.machine = routebuilder.New(quests, routes)
	app.fsm = &fsmAdapter{machine: app.machine}
	return app, nil
}

var _ ui.FallbackProvider = (*App)(nil)

// UnknownText answers free text that matched no command or session.
func (a *App) UnknownText() tele.HandlerFunc { return a.handleUnknownText }

// UnknownDocument answers documents sent outside a builder session.
func (a *App) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return a.handleUnknownText(c)
	}
}

// UnknownCallback answers stale or foreign inline buttons.
func (a *App) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: "Кнопка устарела"})
	}
}

// TelegramRunOptions assembles the registry, routes, and middleware chain.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.registerCommands(reg)
	a.registerCallbacks(reg)
	reg.SetTextFallback(a.UnknownText())
	reg.SetCallbackNotFound(a.UnknownCallback())

	coreCfg := a.cfg.CoreConfig()

	routes := router.TextRoutes(a.fsm, reg, router.TextOptions{
		UnknownText:     a.UnknownText(),
		UnknownDocument: a.UnknownDocument(),
	})
	routes = append(routes, router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: coreCfg.Telegram.AdminID,
	})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, a.mediaRoutes()...)

	return coretelegram.RunOptions{
		Config:      coreCfg,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(coreCfg, nil),
		Routes:      routes,
	}, nil
}

func (a *App) registerCommands(reg *coretelegram.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Регистрация и главное меню",
	})
	reg.RegisterCommand("/quest", commands.Command{
		Handler:     a.handleGetQuest,
		Description: "Получить квест",
		Aliases:     []string{btnGetQuest},
	})
	reg.RegisterCommand("/promocodes", commands.Command{
		Handler:     a.handlePromoCodes,
		Description: "Мои промокоды",
		Aliases:     []string{btnPromoCodes},
	})
	reg.RegisterCommand("/route", commands.Command{
		Handler:     a.handleCreateRoute,
		Description: "Создать маршрут",
		Hidden:      true,
		Aliases:     []string{routebuilder.BtnStartBuilder},
	})
	reg.RegisterCommand("/approve", commands.Command{
		Handler:     a.handleApproveCommand,
		Description: "Принять заявку",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/reject", commands.Command{
		Handler:     a.handleRejectCommand,
		Description: "Отклонить заявку",
		AdminOnly:   true,
	})
}

func (a *App) registerCallbacks(reg *coretelegram.Registry) {
	_ = reg.RegisterCallback("approve", a.handleApproveCallback)
	_ = reg.RegisterCallback("reject", a.handleRejectCallback)
}

// mediaRoutes binds non-text update types. Each checks for an active
// builder session first so the conversation sees photos and pins.
func (a *App) mediaRoutes() []coretelegram.Route {
	viaFSM := func(fallback tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if a.fsm.InProgress(c.Sender().ID) {
				return a.fsm.ManagerHandler(c)
			}
			if fallback != nil {
				return fallback(c)
			}
			return nil
		}
	}

	return []coretelegram.Route{
		{Endpoint: tele.OnPhoto, Handler: a.handlePhoto},
		{Endpoint: tele.OnContact, Handler: viaFSM(a.handleContact)},
		{Endpoint: tele.OnLocation, Handler: viaFSM(nil)},
		{Endpoint: tele.OnAudio, Handler: viaFSM(nil)},
		{Endpoint: tele.OnVoice, Handler: viaFSM(nil)},
	}
}
