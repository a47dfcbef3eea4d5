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

// NewQuestSpec carries the fields of a quest that does not exist yet.
// The row is only created inside the route finalization transaction.
type NewQuestSpec struct {
	Name        string
	Description string
	Location    string
	Latitude    *float64
	Longitude   *float64
}

// RoutePointSpec describes one confirmed point of a route draft.
// Exactly one of QuestID and NewQuest is set.
type RoutePointSpec struct {
	QuestID   *uuid.UUID
	NewQuest  *NewQuestSpec
	HintText  string
	Photo     *string
	Audio     *string
	Latitude  *float64
	Longitude *float64
}

// RouteSpec is the completed draft handed to the atomic commit.
type RouteSpec struct {
	Name        string
	Description string
	Points      []RoutePointSpec
}

// Routes persists finalized routes.
type Routes struct {
	db *sqlx.DB
}

// NewRoutes constructs the route repository.
func NewRoutes(db *sqlx.DB) *Routes {
	return &Routes{db: db}
}

// CreateWithPoints commits the whole route in one transaction: every new
// quest, the route row, and every point with gapless 1-based positions.
// A duplicate route name conflicts with no partial persistence.
func (r *Routes) CreateWithPoints(ctx context.Context, spec RouteSpec) (*models.Route, error) {
	if len(spec.Points) == 0 {
		return nil, apperr.Validation("route has no points")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("routes: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	route := &models.Route{
		ID:          uuid.New(),
		Name:        spec.Name,
		Description: spec.Description,
		CreatedAt:   now,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO routes (id, name, description, created_at) VALUES ($1, $2, $3, $4)`,
		route.ID, route.Name, route.Description, route.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, apperr.Conflict("route name already taken", err)
		}
		return nil, fmt.Errorf("routes: insert route: %w", err)
	}

	for i, p := range spec.Points {
		questID, err := resolvePointQuest(ctx, tx, p, now)
		if err != nil {
			return nil, err
		}
		point := models.RoutePoint{
			ID:        uuid.New(),
			RouteID:   route.ID,
			QuestID:   questID,
			Order:     i + 1,
			HintText:  p.HintText,
			Photo:     p.Photo,
			Audio:     p.Audio,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
		}
		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO route_quests (id, route_id, quest_id, position, hint_text, photo, audio, latitude, longitude)
			 VALUES (:id, :route_id, :quest_id, :position, :hint_text, :photo, :audio, :latitude, :longitude)`,
			point)
		if err != nil {
			if isUniqueViolation(err, "") {
				return nil, apperr.Validation("quest appears twice in route")
			}
			return nil, fmt.Errorf("routes: insert point %d: %w", point.Order, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("routes: commit: %w", err)
	}

	logger.Info(ctx, "service.routes", "routes.create",
		slog.String("status", "ok"),
		slog.String("route_id", route.ID.String()),
		slog.Int("points", len(spec.Points)),
	)
	return route, nil
}

func resolvePointQuest(ctx context.Context, tx *sqlx.Tx, point RoutePointSpec, now time.Time) (uuid.UUID, error) {
	if point.QuestID != nil {
		return *point.QuestID, nil
	}
	if point.NewQuest == nil {
		return uuid.Nil, apperr.Validation("route point carries no quest")
	}
	id := uuid.New()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO quests (id, name, description, location, latitude, longitude, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)`,
		id, point.NewQuest.Name, point.NewQuest.Description, point.NewQuest.Location,
		point.NewQuest.Latitude, point.NewQuest.Longitude, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("routes: insert new quest: %w", err)
	}
	return id, nil
}
