package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/apperr"
)

func testContext(body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestFailMapsKinds(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{apperr.Validation("Validation failed", apperr.FieldError{Field: "title", Message: "required"}), http.StatusBadRequest, "Validation failed"},
		{apperr.Unauthorized("Invalid email or password"), http.StatusUnauthorized, "Invalid email or password"},
		{apperr.Forbidden("Not a project member"), http.StatusForbidden, "Not a project member"},
		{apperr.NotFound("Task not found"), http.StatusNotFound, "Task not found"},
		{apperr.Conflict("User is already a project member"), http.StatusConflict, "User is already a project member"},
		{apperr.Internal("failed to list tasks", errors.New("pq: password=hunter2")), http.StatusInternalServerError, "Error fetching tasks"},
		{errors.New("boom"), http.StatusInternalServerError, "Error fetching tasks"},
	}

	for _, tc := range cases {
		c, w := testContext("")
		fail(c, zap.NewNop(), tc.err, "Error fetching tasks")

		if w.Code != tc.status {
			t.Errorf("%v: status %d, want %d", tc.err, w.Code, tc.status)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body["success"] != false || body["message"] != tc.message {
			t.Errorf("%v: body %v", tc.err, body)
		}
		if strings.Contains(w.Body.String(), "hunter2") {
			t.Error("internal detail leaked")
		}
	}
}

func TestBindFailedUsesJSONFieldNames(t *testing.T) {
	c, w := testContext(`{"status":"todo","position":-2}`)
	var req moveRequest
	err := c.ShouldBindJSON(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}
	bindFailed(c, err)

	var body struct {
		Errors []apperr.FieldError `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Errors) != 1 || body.Errors[0].Field != "position" {
		t.Errorf("unexpected errors %+v", body.Errors)
	}
}

func TestBindFailedMalformedJSON(t *testing.T) {
	c, w := testContext(`{"title":`)
	var req createProjectRequest
	bindFailed(c, c.ShouldBindJSON(&req))
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Invalid request body") {
		t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestParseDueDate(t *testing.T) {
	for _, raw := range []string{"2024-03-01", "2024-03-01T10:00:00Z"} {
		if d, err := parseDueDate(raw); err != nil || d == nil {
			t.Errorf("parseDueDate(%q) = %v, %v", raw, d, err)
		}
	}
	if d, err := parseDueDate(""); err != nil || d != nil {
		t.Errorf("empty due date should clear, got %v, %v", d, err)
	}
	if _, err := parseDueDate("soon"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
