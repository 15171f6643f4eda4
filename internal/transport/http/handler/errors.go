package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"finrag/internal/apperr"
	"finrag/internal/logging"
	"finrag/internal/transport/http/response"
)

// writeError maps err onto a status and stable code. Validation and
// not-found messages are returned verbatim; everything else only exposes
// details when dev is set.
func writeError(c *gin.Context, err error, dev bool) {
	_ = c.Error(err)

	var ae *apperr.Error
	if errors.As(err, &ae) {
		switch ae.Kind {
		case apperr.KindValidation:
			response.Error(c, http.StatusBadRequest, ae.Code, ae.Message)
			return
		case apperr.KindNotFound:
			response.Error(c, http.StatusNotFound, ae.Code, ae.Message)
			return
		case apperr.KindAuth:
			response.Error(c, http.StatusUnauthorized, ae.Code, ae.Message)
			return
		case apperr.KindUpstream:
			logging.FromContext(c.Request.Context(), nil).Warn("upstream failure reached client", zap.Error(err))
			response.Error(c, http.StatusBadGateway, response.CodeUpstream, detailsIf(dev, err))
			return
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		response.Error(c, http.StatusInternalServerError, response.CodeTimeout, detailsIf(dev, err))
		return
	}

	code := response.CodeInternal
	if ae != nil && ae.Code != "" {
		code = ae.Code
	}
	response.Error(c, http.StatusInternalServerError, code, detailsIf(dev, err))
}

func detailsIf(dev bool, err error) string {
	if !dev {
		return ""
	}
	return err.Error()
}
