// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/addonrail/internal/rank"
	"github.com/tomtom215/addonrail/internal/validation"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// RankRequest is the body of POST /api/v1/rank.
type RankRequest struct {
	RequestID    string          `json:"request_id" validate:"omitempty,max=128"`
	SessionID    string          `json:"session_id" validate:"required,notblank,max=128"`
	UserID       string          `json:"user_id" validate:"required,notblank,max=128"`
	RestaurantID string          `json:"restaurant_id" validate:"required,notblank,max=64"`
	Cart         []rank.CartLine `json:"cart" validate:"max=100,dive"`
	Diet         string          `json:"diet" validate:"omitempty,diet"`
	Now          *time.Time      `json:"now,omitempty"`
	MealPeriod   string          `json:"meal_period" validate:"omitempty,oneof=breakfast lunch dinner late_night"`
}

// ToRank converts the body into an engine request.
func (r *RankRequest) ToRank() rank.Request {
	// Validated by the "diet" tag.
	diet, _ := rank.ParseDietMode(r.Diet)
	req := rank.Request{
		RequestID:    r.RequestID,
		SessionID:    r.SessionID,
		UserID:       r.UserID,
		RestaurantID: r.RestaurantID,
		Cart:         r.Cart,
		DietToggle:   diet,
		MealPeriod:   rank.MealPeriod(r.MealPeriod),
	}
	if r.Now != nil {
		req.Now = *r.Now
	}
	return req
}

// FeedbackRequest is the body of POST /api/v1/sessions/{id}/feedback.
type FeedbackRequest struct {
	AcceptedItemIDs []string   `json:"accepted_item_ids" validate:"max=100,dive,notblank"`
	OccurredAt      *time.Time `json:"occurred_at,omitempty"`
}

// DietRequest is the body of PUT /api/v1/sessions/{id}/diet.
type DietRequest struct {
	Mode string `json:"mode" validate:"required,diet"`
}

// sessionIDParam validates a path session id.
type sessionIDParam struct {
	SessionID string `json:"session_id" validate:"required,notblank,max=128"`
}

// decodeAndValidate decodes a JSON body into dst and validates it.
func decodeAndValidate(r *http.Request, w http.ResponseWriter, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return rank.NewValidationError("body", fmt.Sprintf("malformed JSON: %v", err))
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		return verr.ToRankError()
	}
	return nil
}

// validateSessionID checks a session id taken from the path.
func validateSessionID(id string) error {
	if verr := validation.ValidateStruct(&sessionIDParam{SessionID: id}); verr != nil {
		return verr.ToRankError()
	}
	return nil
}
