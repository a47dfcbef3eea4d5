package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/jmoiron/sqlx"
	"github.com/sahilm/fuzzy"
	"log/slog"

	"questbot/core/logger"
	"questbot/internal/apperr"
	"questbot/internal/models"
)

const questNameCacheSize = 256

// Quests reads the quest catalog. Exact-name lookups go through a small
// LRU cache; misses are never cached so quests created later are found.
type Quests struct {
	db    *sqlx.DB
	names *lru.Cache
}

// NewQuests constructs the quest catalog repository.
func NewQuests(db *sqlx.DB) *Quests {
	cache, _ := lru.New(questNameCacheSize)
	return &Quests{db: db, names: cache}
}

// ByID returns one quest by its ID.
func (r *Quests) ByID(ctx context.Context, id uuid.UUID) (*models.Quest, error) {
	var quest models.Quest
	err := r.db.GetContext(ctx, &quest, `SELECT * FROM quests WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("quest not found")
		}
		return nil, fmt.Errorf("quests: select by id: %w", err)
	}
	return &quest, nil
}

// ByExactName returns the first active quest whose name matches exactly.
func (r *Quests) ByExactName(ctx context.Context, name string) (*models.Quest, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.NotFound("quest not found")
	}
	if cached, ok := r.names.Get(name); ok {
		if id, ok := cached.(uuid.UUID); ok {
			quest, err := r.ByID(ctx, id)
			if err == nil && quest.IsActive && quest.Name == name {
				logger.Debug(ctx, "service.quests", "quests.lookup",
					slog.String("status", "ok"),
					slog.String("cache", "hit"),
					slog.String("quest_id", id.String()),
				)
				return quest, nil
			}
			r.names.Remove(name)
		}
	}

	var quest models.Quest
	err := r.db.GetContext(ctx, &quest,
		`SELECT * FROM quests
		 WHERE name = $1 AND is_active = TRUE
		 ORDER BY created_at, id
		 LIMIT 1`, name)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("quest not found")
		}
		return nil, fmt.Errorf("quests: select by name: %w", err)
	}
	r.names.Add(name, quest.ID)
	return &quest, nil
}

// ActiveNames lists names of active quests in stable catalog order.
func (r *Quests) ActiveNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.SelectContext(ctx, &names,
		`SELECT name FROM quests WHERE is_active = TRUE ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("quests: list names: %w", err)
	}
	return names, nil
}

// SuggestNames returns up to limit active quest names resembling the input.
// Advisory only: selection still requires an exact match.
func (r *Quests) SuggestNames(ctx context.Context, input string, limit int) ([]string, error) {
	names, err := r.ActiveNames(ctx)
	if err != nil {
		return nil, err
	}
	return RankNames(input, names, limit), nil
}

// RankNames fuzzy-ranks candidate names against the input.
func RankNames(input string, names []string, limit int) []string {
	matches := fuzzy.Find(strings.TrimSpace(input), names)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, names[m.Index])
	}
	return out
}

// FirstUnattemptedActiveFor offers the first active quest the user has not
// yet attempted, in stable catalog order.
func (r *Quests) FirstUnattemptedActiveFor(ctx context.Context, userID uuid.UUID) (*models.Quest, error) {
	var quest models.Quest
	err := r.db.GetContext(ctx, &quest,
		`SELECT q.* FROM quests q
		 WHERE q.is_active = TRUE
		   AND NOT EXISTS (
		     SELECT 1 FROM user_quest_progress p
		     WHERE p.quest_id = q.id AND p.user_id = $1
		   )
		 ORDER BY q.created_at, q.id
		 LIMIT 1`, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("no available quests")
		}
		return nil, fmt.Errorf("quests: select unattempted: %w", err)
	}
	return &quest, nil
}

// ExistsByName reports whether any quest already carries the name.
func (r *Quests) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM quests WHERE name = $1)`, name)
	if err != nil {
		return false, fmt.Errorf("quests: exists by name: %w", err)
	}
	return exists, nil
}
