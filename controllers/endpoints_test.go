package controllers_test

import (
	"database/sql/driver"
	"encoding/json"
	"net/http"
	"regexp"
	"testing"

	"training-management-api/middleware"
)

func TestWebhookEndpointRejectsBadSignature(t *testing.T) {
	body := `{"id":"evt-ep-1","type":"trainee.updated","data":{"id":"rt-1"}}`

	// The rejected delivery is still recorded for audit.
	testState.push(&stubStep{
		kind:    stubKindExec,
		pattern: regexp.MustCompile("INSERT INTO `webhook_events`"),
		result:  stubResult{lastInsertID: 1, rowsAffected: 1},
	})

	w := doRequest("POST", "/webhooks/remote", body, map[string]string{
		"X-Signature": "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
	})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp["success"] != false {
		t.Errorf("Expected success false, got %v", resp["success"])
	}
	testState.verifyComplete(t)
}

func TestWebhookEndpointAcceptsNewEvent(t *testing.T) {
	body := `{"id":"evt-ep-2","type":"trainee.updated","created":"2026-08-30T10:00:00Z","data":{"id":"rt-2"}}`

	testState.push(
		&stubStep{
			kind:    stubKindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `webhook_events` WHERE event_id = \\?"),
			columns: []string{"id"},
		},
		&stubStep{
			kind:    stubKindExec,
			pattern: regexp.MustCompile("INSERT INTO `webhook_events`"),
			result:  stubResult{lastInsertID: 42, rowsAffected: 1},
		},
	)

	w := doRequest("POST", "/webhooks/remote", body, map[string]string{
		"X-Signature": signEndpointBody(body),
	})

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp["event_id"] != "evt-ep-2" {
		t.Errorf("Expected event_id evt-ep-2, got %v", resp["event_id"])
	}
	if resp["status"] != "pending" {
		t.Errorf("Expected status pending, got %v", resp["status"])
	}
	if resp["duplicate"] != false {
		t.Errorf("Expected duplicate false, got %v", resp["duplicate"])
	}
	testState.verifyComplete(t)
}

func TestWebhookEndpointReportsDuplicate(t *testing.T) {
	body := `{"id":"evt-ep-3","type":"trainee.updated","data":{"id":"rt-3"}}`

	testState.push(&stubStep{
		kind:    stubKindQuery,
		pattern: regexp.MustCompile("SELECT \\* FROM `webhook_events` WHERE event_id = \\?"),
		columns: []string{"id", "event_id", "processing_status"},
		rows:    [][]driver.Value{{int64(9), "evt-ep-3", "succeeded"}},
	})

	w := doRequest("POST", "/webhooks/remote", body, map[string]string{
		"X-Signature": signEndpointBody(body),
	})

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp["duplicate"] != true {
		t.Errorf("Expected duplicate true, got %v", resp["duplicate"])
	}
	if resp["status"] != "duplicate" {
		t.Errorf("Expected status duplicate, got %v", resp["status"])
	}
	testState.verifyComplete(t)
}

func TestTriggerSyncConflictsWhileAnotherRunHoldsLock(t *testing.T) {
	testState.push(&stubStep{
		kind:    stubKindQuery,
		pattern: regexp.MustCompile(`SELECT GET_LOCK\(\?, 0\)`),
		columns: []string{"GET_LOCK(?, 0)"},
		rows:    [][]driver.Value{{int64(0)}},
	})

	w := doRequest("POST", "/api/v1/admin/sync/trainee", "", map[string]string{
		"Authorization": bearerToken(t, middleware.RoleAdmin),
	})

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d: %s", w.Code, w.Body.String())
	}
	testState.verifyComplete(t)
}

func TestTriggerSyncRejectsUnknownEntityType(t *testing.T) {
	w := doRequest("POST", "/api/v1/admin/sync/starship", "", map[string]string{
		"Authorization": bearerToken(t, middleware.RoleAdmin),
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d: %s", w.Code, w.Body.String())
	}
	testState.verifyComplete(t)
}

func TestReplayEndpointMissingEventReturns404(t *testing.T) {
	testState.push(&stubStep{
		kind:    stubKindQuery,
		pattern: regexp.MustCompile("SELECT \\* FROM `webhook_events` WHERE id = \\?"),
		columns: []string{"id"},
	})

	w := doRequest("POST", "/api/v1/admin/webhooks/999/replay", "", map[string]string{
		"Authorization": bearerToken(t, middleware.RoleAdmin),
	})

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d: %s", w.Code, w.Body.String())
	}
	testState.verifyComplete(t)
}

func TestReplayEndpointRefusesNonDeadLetteredEvent(t *testing.T) {
	testState.push(&stubStep{
		kind:    stubKindQuery,
		pattern: regexp.MustCompile("SELECT \\* FROM `webhook_events` WHERE id = \\?"),
		columns: []string{"id", "event_id", "processing_status", "attempt_count", "max_attempts"},
		rows:    [][]driver.Value{{int64(7), "evt-ep-7", "succeeded", int64(1), int64(5)}},
	})

	w := doRequest("POST", "/api/v1/admin/webhooks/7/replay", "", map[string]string{
		"Authorization": bearerToken(t, middleware.RoleAdmin),
	})

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d: %s", w.Code, w.Body.String())
	}
	testState.verifyComplete(t)
}

func TestDeadLetterListEndpoint(t *testing.T) {
	testState.push(
		&stubStep{
			kind:    stubKindQuery,
			pattern: regexp.MustCompile("SELECT count\\(\\*\\) FROM `webhook_events`"),
			columns: []string{"count(*)"},
			rows:    [][]driver.Value{{int64(1)}},
		},
		&stubStep{
			kind:    stubKindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `webhook_events`"),
			columns: []string{"id", "event_id", "processing_status", "attempt_count", "max_attempts"},
			rows:    [][]driver.Value{{int64(12), "evt-ep-12", "failed", int64(5), int64(5)}},
		},
	)

	w := doRequest("GET", "/api/v1/admin/webhooks/dead-letter", "", map[string]string{
		"Authorization": bearerToken(t, middleware.RoleAdmin),
	})

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success bool    `json:"success"`
		Total   float64 `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if !resp.Success || resp.Total != 1 {
		t.Errorf("Expected success with total 1, got %+v", resp)
	}
	testState.verifyComplete(t)
}

func TestAdminRoutesRequireAuthentication(t *testing.T) {
	w := doRequest("POST", "/api/v1/admin/sync/trainee", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without token, got %d", w.Code)
	}
	testState.verifyComplete(t)
}

func TestAdminRoutesRejectNonAdminRole(t *testing.T) {
	w := doRequest("POST", "/api/v1/admin/sync/trainee", "", map[string]string{
		"Authorization": bearerToken(t, middleware.RoleStaff),
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for staff token, got %d", w.Code)
	}
	testState.verifyComplete(t)
}
