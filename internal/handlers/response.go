package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harvesttable/growth-backend/internal/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAppError maps the engine's error taxonomy onto HTTP statuses so
// every operation surfaces a structured result instead of a bare 500.
func RespondAppError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindValidation:
		status = http.StatusUnprocessableEntity
	case apperr.KindCategoryConflict, apperr.KindInvalidTransition, apperr.KindAlreadyDecided:
		status = http.StatusConflict
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindDataSource:
		status = http.StatusBadGateway
	}
	RespondError(c, status, string(kind), err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
