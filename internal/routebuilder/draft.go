package routebuilder

import (
	"github.com/google/uuid"

	"questbot/internal/storage"
)

// NewQuestDraft accumulates fields of a quest that will only be created
// inside the route finalization transaction.
type NewQuestDraft struct {
	Name        string
	Description string
	Location    string
	Latitude    *float64
	Longitude   *float64
}

// PointDraft is the in-progress point buffer. Exactly one of QuestID and
// NewQuest is set once the quest step is passed.
type PointDraft struct {
	QuestID   *uuid.UUID
	QuestName string
	NewQuest  *NewQuestDraft
	HintText  string
	Photo     *string
	Audio     *string
	Latitude  *float64
	Longitude *float64
}

// Draft is the per-session accumulator of one route builder conversation.
// It lives only in memory and is discarded on completion or cancellation.
type Draft struct {
	RouteName        string
	RouteDescription string
	Points           []PointDraft
	Current          PointDraft
}

// HasQuest reports whether a confirmed point already references the quest.
func (d *Draft) HasQuest(id uuid.UUID) bool {
	for _, p := range d.Points {
		if p.QuestID != nil && *p.QuestID == id {
			return true
		}
	}
	return false
}

// HasNewQuestNamed reports whether a confirmed point already introduces a
// new quest with the given name.
func (d *Draft) HasNewQuestNamed(name string) bool {
	for _, p := range d.Points {
		if p.NewQuest != nil && p.NewQuest.Name == name {
			return true
		}
	}
	return false
}

// ConfirmCurrent appends the point buffer to the ordered list and clears it.
// The point's 1-based order equals its resulting list position.
func (d *Draft) ConfirmCurrent() int {
	d.Points = append(d.Points, d.Current)
	d.Current = PointDraft{}
	return len(d.Points)
}

// DiscardCurrent drops only the point buffer; confirmed points stay.
func (d *Draft) DiscardCurrent() {
	d.Current = PointDraft{}
}

// Spec converts the completed draft into the atomic commit input.
func (d *Draft) Spec() storage.RouteSpec {
	spec := storage.RouteSpec{
		Name:        d.RouteName,
		Description: d.RouteDescription,
		Points:      make([]storage.RoutePointSpec, 0, len(d.Points)),
	}
	for _, p := range d.Points {
		point := storage.RoutePointSpec{
			QuestID:   p.QuestID,
			HintText:  p.HintText,
			Photo:     p.Photo,
			Audio:     p.Audio,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
		}
		if p.NewQuest != nil {
			point.NewQuest = &storage.NewQuestSpec{
				Name:        p.NewQuest.Name,
				Description: p.NewQuest.Description,
				Location:    p.NewQuest.Location,
				Latitude:    p.NewQuest.Latitude,
				Longitude:   p.NewQuest.Longitude,
			}
		}
		spec.Points = append(spec.Points, point)
	}
	return spec
}
