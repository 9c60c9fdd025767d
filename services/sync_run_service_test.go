package services

import (
	"errors"
	"regexp"
	"testing"

	"training-management-api/models"

	"database/sql/driver"
)

func TestUpdateProgressUnknownRun(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE `sync_runs`"),
			anyArgs: true,
			result:  scriptedResult{rowsAffected: 0},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewSyncRunService(db)
	err := svc.UpdateProgress(99, &SyncRunSummary{FetchedCount: 1})
	if !errors.Is(err, ErrSyncRunNotFound) {
		t.Fatalf("expected ErrSyncRunNotFound, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestGetLatestCompletedReturnsNilWithoutRuns(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `sync_runs`"),
			args:    []driver.Value{"trainee", models.SyncRunStatusCompleted, models.SyncRunStatusCompletedWithErrors},
			columns: []string{"id"},
			rows:    [][]driver.Value{},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewSyncRunService(db)
	run, err := svc.GetLatestCompleted("trainee")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run != nil {
		t.Fatalf("expected nil run, got %+v", run)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestGetRunningFindsActiveRun(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `sync_runs`"),
			args:    []driver.Value{"trainee", models.SyncRunStatusRunning},
			columns: []string{"id", "entity_type", "status"},
			rows: [][]driver.Value{{
				int64(3), "trainee", models.SyncRunStatusRunning,
			}},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewSyncRunService(db)
	run, err := svc.GetRunning("trainee")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run == nil || run.ID != 3 {
		t.Fatalf("expected run 3, got %+v", run)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("%v", err)
	}
}
