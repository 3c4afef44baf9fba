package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xfeed/xfeed/internal/coordinate"
	"github.com/xfeed/xfeed/internal/models"
	"github.com/xfeed/xfeed/internal/tasks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry() *tasks.Registry {
	return tasks.New(testLogger())
}

type fakeCoordinator struct {
	result coordinate.ScrapeResult
	err    error
	calls  [][]string
}

func (f *fakeCoordinator) ScrapeUsers(ctx context.Context, usernames []string, overrideLimit ...int) (coordinate.ScrapeResult, error) {
	f.calls = append(f.calls, usernames)
	return f.result, f.err
}

func waitForTerminal(t *testing.T, reg *tasks.Registry, taskID string) models.Task {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		task, err := reg.Get(taskID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if task.Status.IsTerminal() {
			return task
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("task never reached terminal state")
	return models.Task{}
}

func TestScrapeHandler_Create(t *testing.T) {
	reg := tasks.New(testLogger())
	coord := &fakeCoordinator{result: coordinate.ScrapeResult{TotalUsers: 2, NewTweets: 5}}
	h := NewScrapeHandler(reg, coord, testLogger())

	body := strings.NewReader(`{"usernames":"alice, bob"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/scrape", body)
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	var resp enqueueScrapeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TaskID == "" {
		t.Fatal("expected non-empty task_id")
	}

	task := waitForTerminal(t, reg, resp.TaskID)
	if task.Status != models.TaskCompleted {
		t.Fatalf("status = %s, want completed", task.Status)
	}
	if len(coord.calls) != 1 || len(coord.calls[0]) != 2 {
		t.Fatalf("unexpected coordinator calls: %+v", coord.calls)
	}
}

func TestScrapeHandler_Create_EmptyUsernamesIsValidationError(t *testing.T) {
	reg := tasks.New(testLogger())
	coord := &fakeCoordinator{}
	h := NewScrapeHandler(reg, coord, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/scrape", strings.NewReader(`{"usernames":""}`))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}

func TestScrapeHandler_GetAndList(t *testing.T) {
	reg := tasks.New(testLogger())
	coord := &fakeCoordinator{result: coordinate.ScrapeResult{}}
	h := NewScrapeHandler(reg, coord, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/scrape", strings.NewReader(`{"usernames":"alice"}`))
	w := httptest.NewRecorder()
	h.Create(w, req)
	var resp enqueueScrapeResponse
	json.NewDecoder(w.Body).Decode(&resp)
	waitForTerminal(t, reg, resp.TaskID)

	w = httptest.NewRecorder()
	h.Get(w, httptest.NewRequest(http.MethodGet, "/api/admin/scrape/"+resp.TaskID, nil), resp.TaskID)
	if w.Code != http.StatusOK {
		t.Fatalf("Get status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/admin/scrape", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("List status = %d", w.Code)
	}
	var tasksOut []models.Task
	if err := json.NewDecoder(w.Body).Decode(&tasksOut); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasksOut) != 1 {
		t.Fatalf("len(tasks) = %d, want 1", len(tasksOut))
	}
}

func TestScrapeHandler_Delete_RunningIsConflict(t *testing.T) {
	reg := tasks.New(testLogger())
	taskID := reg.Create("scrape")
	if err := reg.UpdateStatus(taskID, models.TaskRunning, nil, nil); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	h := NewScrapeHandler(reg, &fakeCoordinator{}, testLogger())

	w := httptest.NewRecorder()
	h.Delete(w, httptest.NewRequest(http.MethodDelete, "/api/admin/scrape/"+taskID, nil), taskID)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}
