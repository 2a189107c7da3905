package adaptor

import (
	"errors"
	"net/http"

	"trip-booking/internal/data/entity"
	"trip-booking/pkg/utils"

	"go.uber.org/zap"
)

// handleServiceError maps the service error taxonomy onto HTTP responses.
// Branching is on errors.Is / errors.As, never on message text.
func handleServiceError(log *zap.Logger, w http.ResponseWriter, err error, operation string) {
	var conflict *entity.ConflictError

	switch {
	case errors.As(err, &conflict):
		log.Warn(operation+" failed - seats unavailable",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseConflict(w, err.Error(), map[string]any{"seats": conflict.Seats})

	case errors.Is(err, entity.ErrNotFound):
		log.Warn(operation+" failed - not found",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseNotFound(w, err.Error())

	case errors.Is(err, entity.ErrExpired):
		log.Warn(operation+" failed - expired",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseGone(w, err.Error())

	case errors.Is(err, entity.ErrConflict):
		log.Warn(operation+" failed - state conflict",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseConflict(w, err.Error(), nil)

	case errors.Is(err, entity.ErrInvariant):
		log.Warn(operation+" failed - invalid input",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseBadRequest(w, err.Error(), nil)

	case errors.Is(err, entity.ErrGateway):
		log.Error(operation+" failed - gateway",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseBadGateway(w, err.Error())

	default:
		log.Error("Failed to "+operation,
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
