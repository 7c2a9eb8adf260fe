package handler

import (
	"google.golang.org/grpc/status"

	"github.com/dtroode/identity-server/internal/apierrors"
)

func (h *Identity) handleError(err error) error {
	apiErr := apierrors.From(err)
	if apiErr.Kind == apierrors.KindInternal {
		h.logger.Error("Identity handler: request failed",
			"error", err.Error())
	}

	return status.Error(apiErr.GRPCCode, apiErr.Message)
}
