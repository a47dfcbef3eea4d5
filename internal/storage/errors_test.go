package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pq.Error{Code: "23505", Constraint: "routes_name_key"}
	fk := &pq.Error{Code: "23503", Constraint: "route_quests_route_id_fkey"}

	if !isUniqueViolation(unique, "") {
		t.Error("unique violation not detected")
	}
	if !isUniqueViolation(unique, "routes_name_key") {
		t.Error("constraint-narrowed match failed")
	}
	if isUniqueViolation(unique, "user_quest_progress_user_id_quest_id_key") {
		t.Error("matched the wrong constraint")
	}
	if isUniqueViolation(fk, "") {
		t.Error("foreign key violation misread as unique")
	}
	if isUniqueViolation(errors.New("connection reset"), "") {
		t.Error("plain error misread as unique violation")
	}
	if !isUniqueViolation(fmt.Errorf("insert: %w", unique), "routes_name_key") {
		t.Error("wrapped violation not detected")
	}
}

func TestIsNoRows(t *testing.T) {
	if !isNoRows(sql.ErrNoRows) {
		t.Error("sql.ErrNoRows not detected")
	}
	if !isNoRows(fmt.Errorf("select: %w", sql.ErrNoRows)) {
		t.Error("wrapped sql.ErrNoRows not detected")
	}
	if isNoRows(errors.New("other")) {
		t.Error("foreign error misread as no rows")
	}
}
