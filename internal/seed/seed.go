// Package seed loads the initial quest catalog and promo codes from a
// YAML file. Seeding is idempotent: existing quests are left untouched
// and duplicate promo codes are skipped.
package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"log/slog"

	"questbot/core/logger"
	"questbot/internal/storage"
)

// QuestSeed describes one quest with its reward pool.
type QuestSeed struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Location    string   `yaml:"location"`
	Latitude    *float64 `yaml:"latitude"`
	Longitude   *float64 `yaml:"longitude"`
	PromoCodes  []string `yaml:"promo_codes"`
}

// File is the top-level seed document.
type File struct {
	Quests []QuestSeed `yaml:"quests"`
}

// Seeder reads the file lazily so a missing path only fails when enabled.
type Seeder struct {
	path string
}

// New returns a seeder for the given file path.
func New(path string) *Seeder {
	return &Seeder{path: path}
}

// Seed inserts quests and promo codes that are not present yet.
func (s *Seeder) Seed(ctx context.Context, db *sqlx.DB) error {
	if s == nil || s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("seed: read %s: %w", s.path, err)
	}
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("seed: parse %s: %w", s.path, err)
	}

	quests := storage.NewQuests(db)
	var createdQuests, createdCodes int
	for _, q := range file.Quests {
		if q.Name == "" {
			return fmt.Errorf("seed: quest with empty name in %s", s.path)
		}

		exists, err := quests.ExistsByName(ctx, q.Name)
		if err != nil {
			return err
		}
		if !exists {
			_, err = db.ExecContext(ctx, `
				INSERT INTO quests (name, description, location, latitude, longitude, is_active)
				VALUES ($1, $2, $3, $4, $5, TRUE)`,
				q.Name, q.Description, q.Location, q.Latitude, q.Longitude,
			)
			if err != nil {
				return fmt.Errorf("seed: insert quest %q: %w", q.Name, err)
			}
			createdQuests++
		}

		for _, code := range q.PromoCodes {
			res, err := db.ExecContext(ctx, `
				INSERT INTO promo_codes (code, quest_id)
				SELECT $1, id FROM quests WHERE name = $2
				ON CONFLICT (code) DO NOTHING`,
				code, q.Name,
			)
			if err != nil {
				return fmt.Errorf("seed: insert promo code for %q: %w", q.Name, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				createdCodes += int(n)
			}
		}
	}

	logger.Info(ctx, "db.seed", "seed.done",
		slog.String("status", "ok"),
		slog.Int("quests_total", len(file.Quests)),
		slog.Int("quests_created", createdQuests),
		slog.Int("codes_created", createdCodes),
	)
	return nil
}
