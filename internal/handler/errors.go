package handler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/vocab-runner/internal/apiclient"
	"github.com/stemsi/vocab-runner/internal/capture"
	"github.com/stemsi/vocab-runner/internal/exam"
	"github.com/stemsi/vocab-runner/internal/response"
	"github.com/stemsi/vocab-runner/internal/service"
)

// sentinelCodes is matched in order; refinements come before their parents.
// msg overrides the code's default message.
var sentinelCodes = []struct {
	err    error
	status int
	code   response.ErrCode
	msg    string
}{
	{service.ErrSessionNotFound, http.StatusNotFound, response.ErrSessionNotFound, ""},
	{service.ErrTypeMismatch, http.StatusConflict, response.ErrTypeMismatch, ""},
	{service.ErrNoPendingResult, http.StatusNotFound, response.ErrNoPendingResult, ""},
	{service.ErrSpeechDisabled, http.StatusServiceUnavailable, response.ErrSpeechDisabled, ""},
	{service.ErrNothingToSpeak, http.StatusUnprocessableEntity, response.ErrNothingToSpeak, ""},
	{exam.ErrNoQuestions, http.StatusUnprocessableEntity, response.ErrNoQuestions, ""},
	{exam.ErrUnknownType, http.StatusUnprocessableEntity, response.ErrUnknownType, ""},
	{exam.ErrInvalidState, http.StatusConflict, response.ErrInvalidState, ""},
	{exam.ErrUnsupported, http.StatusConflict, response.ErrUnsupported, ""},
	{exam.ErrInvalidAnswer, http.StatusBadRequest, response.ErrInvalidAnswer, ""},
	{exam.ErrNotLastCard, http.StatusConflict, response.ErrCannotSubmit, "Move to the last card to complete."},
	{exam.ErrRecordingTooLarge, http.StatusRequestEntityTooLarge, response.ErrRecordingTooLarge, ""},
	{exam.ErrCannotSubmit, http.StatusConflict, response.ErrCannotSubmit, ""},
	{exam.ErrNoRecording, http.StatusConflict, response.ErrCannotSubmit, ""},
	{exam.ErrSessionClosed, http.StatusGone, response.ErrSessionClosed, ""},
	{exam.ErrAlreadyRecording, http.StatusConflict, response.ErrAlreadyRecording, ""},
	{exam.ErrNotRecording, http.StatusConflict, response.ErrNotRecording, ""},
	{capture.ErrBusy, http.StatusConflict, response.ErrMicrophoneBusy, ""},
}

// classify maps a service error to an HTTP status, an error code and, for
// remote failures, the remote message.
func classify(err error) (int, response.ErrCode, string) {
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return s.status, s.code, s.msg
		}
	}

	var cooldown *service.CooldownError
	if errors.As(err, &cooldown) {
		return http.StatusTooManyRequests, response.ErrGenerateCooldown, cooldown.Error()
	}

	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		msg := apiclient.ErrorMessage(err, "")
		switch apiErr.Status {
		case http.StatusUnauthorized:
			return http.StatusUnauthorized, response.ErrTokenInvalid, msg
		case http.StatusNotFound:
			return http.StatusNotFound, response.ErrNotFound, msg
		}
		return http.StatusBadGateway, response.ErrRemoteAPI, msg
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return http.StatusServiceUnavailable, response.ErrRemoteUnavailable, ""
	}
	return http.StatusInternalServerError, response.ErrInternal, ""
}

// failWithError writes the error response for err.
func failWithError(c *gin.Context, err error) {
	status, code, msg := classify(err)
	var cooldown *service.CooldownError
	if errors.As(err, &cooldown) {
		c.Header("Retry-After", strconv.Itoa(cooldown.Seconds()))
	}
	response.FailWithMessage(c, status, code, msg)
}

var (
	errUnknownAction     = errors.New("unknown action")
	errInvalidAssessment = errors.New("assessment must be known or unknown")
)
