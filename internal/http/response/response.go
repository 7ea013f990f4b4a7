// Package response renders REST results and error collections.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nhle/tracker/internal/errs"
)

// ErrorBody is the error document every endpoint returns.
type ErrorBody struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

// StatusFor maps a reason to an HTTP status.
func StatusFor(r errs.Reason) int {
	switch r {
	case errs.ReasonNotLoggedIn:
		return http.StatusUnauthorized
	case errs.ReasonForbidden:
		return http.StatusForbidden
	case errs.ReasonNotFound:
		return http.StatusNotFound
	case errs.ReasonConflict:
		return http.StatusConflict
	case errs.ReasonServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// RespondCollection writes ec with the status of its worst reason.
func RespondCollection(c *gin.Context, ec *errs.Collection) {
	body := ErrorBody{ErrorMessages: ec.ErrorMessages(), Errors: ec.Errors()}
	if body.ErrorMessages == nil {
		body.ErrorMessages = []string{}
	}
	if body.Errors == nil {
		body.Errors = map[string]string{}
	}
	c.JSON(StatusFor(ec.Worst()), body)
}

// RespondError writes err. Collections keep their status; anything else
// is a 500 with a generic message.
func RespondError(c *gin.Context, err error) {
	if ec, ok := errs.From(err); ok {
		RespondCollection(c, ec)
		return
	}
	if errors.Is(err, errs.ErrInvalidResult) {
		RespondMessage(c, http.StatusInternalServerError, "The request could not be completed.")
		return
	}
	_ = c.Error(err)
	RespondMessage(c, http.StatusInternalServerError, "Internal server error.")
}

// RespondMessage writes a single general error message.
func RespondMessage(c *gin.Context, status int, msg string) {
	c.JSON(status, ErrorBody{ErrorMessages: []string{msg}, Errors: map[string]string{}})
}

// RespondBadRequest reports a malformed request body or parameter.
func RespondBadRequest(c *gin.Context, err error) {
	RespondMessage(c, http.StatusBadRequest, err.Error())
}

// RespondOK writes payload with status 200.
func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondCreated writes payload with status 201.
func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondNoContent writes an empty 204.
func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
