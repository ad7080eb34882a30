// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/vigil/internal/factcache"
)

type settingRequest struct {
	Value string `json:"value" validate:"required,max=256"`
}

type settingResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// GetSetting returns a scalar setting; unset settings are empty.
func (h *Handler) GetSetting(w http.ResponseWriter, r *http.Request) {
	key, ok := settingKey(w, r)
	if !ok {
		return
	}
	respondJSON(w, r, http.StatusOK, settingResponse{
		Key:   key.String(),
		Value: h.svc.Setting(r.Context(), key),
	})
}

// PutSetting stores a scalar setting.
func (h *Handler) PutSetting(w http.ResponseWriter, r *http.Request) {
	key, ok := settingKey(w, r)
	if !ok {
		return
	}
	var req settingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.svc.SetSetting(r.Context(), key, req.Value)
	respondJSON(w, r, http.StatusOK, settingResponse{
		Key:   key.String(),
		Value: h.svc.Setting(r.Context(), key),
	})
}

func settingKey(w http.ResponseWriter, r *http.Request) (factcache.SettingKey, bool) {
	key, ok := factcache.ParseSettingKey(chi.URLParam(r, "key"))
	if !ok {
		respondError(w, r, http.StatusNotFound, codeNotFound, "Unknown setting", nil)
	}
	return key, ok
}
