// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/addonrail/internal/feedback"
	"github.com/tomtom215/addonrail/internal/rank"
)

// ErrAdminDisabled is reported when admin routes are requested without a
// configured signing secret.
var ErrAdminDisabled = errors.New("admin API disabled: JWT_SECRET not configured")

// respondError maps domain errors onto the envelope.
func respondError(rw *ResponseWriter, err error) {
	var ve *rank.ValidationError
	switch {
	case errors.As(err, &ve):
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, ve.Error(),
			map[string]string{"field": ve.Field, "reason": ve.Reason})
	case errors.Is(err, feedback.ErrInvalidEvent):
		rw.Error(http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, rank.ErrCatalogUnavailable):
		rw.ServiceUnavailable("catalog snapshot unavailable")
	case errors.Is(err, feedback.ErrPublisherClosed),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		rw.ServiceUnavailable("feedback transport unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		rw.ServiceUnavailable("request canceled")
	default:
		rw.InternalError(err)
	}
}
