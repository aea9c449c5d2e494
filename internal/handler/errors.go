package handler

import (
	"errors"
	"net/http"

	"github.com/jengzang/machine-efficiency-go/internal/pipeline"
	"github.com/jengzang/machine-efficiency-go/internal/repository"
	"github.com/jengzang/machine-efficiency-go/internal/service"
	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// statusFor maps an error to the HTTP status reported to clients.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrChainRunning):
		return http.StatusConflict
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	}

	switch apperr.KindOf(err) {
	case apperr.UnknownCategory:
		return http.StatusUnprocessableEntity
	case apperr.InvalidInput, apperr.Parse:
		return http.StatusBadRequest
	case apperr.ArtifactNotFound, apperr.ArtifactInvalid, apperr.ShapeMismatch:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
