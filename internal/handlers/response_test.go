package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/harvesttable/growth-backend/internal/apperr"
)

func TestRespondAppErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
	}{
		{apperr.Validation("bad input"), http.StatusUnprocessableEntity},
		{apperr.CategoryConflict("category busy"), http.StatusConflict},
		{apperr.InvalidTransition("wrong state"), http.StatusConflict},
		{apperr.AlreadyDecided("winner set"), http.StatusConflict},
		{apperr.NotFound("no such experiment"), http.StatusNotFound},
		{apperr.DataSource("metrics backend down", nil), http.StatusBadGateway},
		{apperr.Internal("boom", nil), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		RespondAppError(c, tc.err)
		if rec.Code != tc.status {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.status)
		}
		var envelope ErrorEnvelope
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("%v: bad body: %v", tc.err, err)
		}
		if envelope.Error.Code != string(apperr.KindOf(tc.err)) {
			t.Fatalf("%v: code = %q", tc.err, envelope.Error.Code)
		}
		if envelope.Error.Message == "" {
			t.Fatalf("%v: empty message", tc.err)
		}
	}
}

func TestRespondAppErrorUnwrapsCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	// A wrapped taxonomy error keeps its status through fmt wrapping.
	wrapped := apperr.NotFound("experiment missing")
	RespondAppError(c, wrapped)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
