package httpadapter

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/kirillkom/submission-vault/internal/core/domain"
)

const promotionHaltedMessage = "approval halted, integrity preserved — retry"

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSubmissionNotFound),
		domain.IsKind(err, domain.ErrDocumentTypeNotFound),
		domain.IsKind(err, domain.ErrRuleSetNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConflict),
		domain.IsKind(err, domain.ErrStaleState),
		domain.IsKind(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrPromotionFailed):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides unexpected internals; configuration problems stay visible so operators can fix them.
func publicMessage(status int, err error) string {
	switch {
	case domain.IsKind(err, domain.ErrPromotionFailed):
		return promotionHaltedMessage
	case status == http.StatusInternalServerError && !domain.IsKind(err, domain.ErrConfiguration):
		return "internal error"
	default:
		return err.Error()
	}
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, map[string]string{"error": publicMessage(status, err)})
}
