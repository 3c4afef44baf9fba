package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/auth"
	"github.com/xfeed/xfeed/internal/models"
)

type fakeFilterRules struct {
	byID map[string]models.FilterRule
}

func (f *fakeFilterRules) ListForUser(ctx context.Context, userID string) ([]models.FilterRule, error) {
	var out []models.FilterRule
	for _, rule := range f.byID {
		if rule.UserID == userID {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (f *fakeFilterRules) Create(ctx context.Context, rule models.FilterRule) error {
	f.byID[rule.ID] = rule
	return nil
}

func (f *fakeFilterRules) Delete(ctx context.Context, userID, id string) error {
	rule, ok := f.byID[id]
	if !ok || rule.UserID != userID {
		return apperr.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func TestFilterRuleHandler_Create(t *testing.T) {
	rules := &fakeFilterRules{byID: map[string]models.FilterRule{}}
	h := NewFilterRuleHandler(rules, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/users/me/filters", strings.NewReader(`{"filter_type":"keyword","value":"election"}`))
	req = withPrincipal(req, auth.Principal{UserID: "u1"})
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if len(rules.byID) != 1 {
		t.Fatalf("len(rules) = %d, want 1", len(rules.byID))
	}
}

func TestFilterRuleHandler_Create_UnknownTypeIsValidationError(t *testing.T) {
	rules := &fakeFilterRules{byID: map[string]models.FilterRule{}}
	h := NewFilterRuleHandler(rules, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/users/me/filters", strings.NewReader(`{"filter_type":"bogus","value":"x"}`))
	req = withPrincipal(req, auth.Principal{UserID: "u1"})
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}

func TestFilterRuleHandler_List(t *testing.T) {
	rules := &fakeFilterRules{byID: map[string]models.FilterRule{
		"r1": {ID: "r1", UserID: "u1", Type: models.FilterKeyword, Value: "election"},
		"r2": {ID: "r2", UserID: "u2", Type: models.FilterKeyword, Value: "other"},
	}}
	h := NewFilterRuleHandler(rules, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/users/me/filters", nil)
	req = withPrincipal(req, auth.Principal{UserID: "u1"})
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestFilterRuleHandler_Delete_WrongUserIsNotFound(t *testing.T) {
	rules := &fakeFilterRules{byID: map[string]models.FilterRule{
		"r1": {ID: "r1", UserID: "u1", Type: models.FilterKeyword, Value: "election"},
	}}
	h := NewFilterRuleHandler(rules, testLogger())

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me/filters/r1", nil)
	req = withPrincipal(req, auth.Principal{UserID: "u2"})
	w := httptest.NewRecorder()
	h.Delete(w, req, "r1")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
