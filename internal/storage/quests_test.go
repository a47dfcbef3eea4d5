package storage

import (
	"reflect"
	"testing"
)

func TestRankNames(t *testing.T) {
	names := []string{"Старая площадь", "Набережная", "Старый мост", "Фонтан"}

	got := RankNames("Стар", names, 3)
	if len(got) == 0 {
		t.Fatal("no suggestions for a close input")
	}
	for _, name := range got {
		if name != "Старая площадь" && name != "Старый мост" {
			t.Errorf("unrelated suggestion %q", name)
		}
	}
}

func TestRankNamesLimit(t *testing.T) {
	names := []string{"аа", "ааа", "аааа", "ааааа"}
	got := RankNames("аа", names, 2)
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestRankNamesNoMatch(t *testing.T) {
	names := []string{"Старая площадь", "Набережная"}
	if got := RankNames("xyz", names, 3); len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

func TestRankNamesEmptyCatalog(t *testing.T) {
	if got := RankNames("что-то", nil, 3); !reflect.DeepEqual(got, []string{}) {
		t.Errorf("got %v, want empty", got)
	}
}
