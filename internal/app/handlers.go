package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"summitsafeguard/go-tracker-server/internal/auth"
	"summitsafeguard/go-tracker-server/internal/model"
	"summitsafeguard/go-tracker-server/internal/query"
)

const requestStoreTimeout = 2 * time.Second

// authedHandler is an http handler that only runs once the caller identity
// has been established by a guard.
type authedHandler func(w http.ResponseWriter, r *http.Request, caller model.Identity)

// requireAuth parses and verifies the bearer token before the handler runs.
// Handlers behind it never see an unauthenticated request.
func (a *App) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		caller, err := auth.ParseToken(a.cfg.JWTSecret, tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next(w, r, caller)
	}
}

// requireRescuer additionally rejects non-rescuer callers.
func (a *App) requireRescuer(next authedHandler) http.HandlerFunc {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request, caller model.Identity) {
		if caller.Role != model.RoleRescuer {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, caller)
	})
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestStoreTimeout)
	defer cancel()

	account, err := a.store.AccountByUsername(ctx, req.Username)
	if err != nil || !auth.VerifyPassword(account.PasswordHash, req.Password) {
		// Same response for unknown username and wrong password.
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.IssueToken(a.cfg.JWTSecret, account)
	if err != nil {
		a.logger.Error("failed to issue token", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "could not generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (a *App) handleHikers(w http.ResponseWriter, r *http.Request, caller model.Identity) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestStoreTimeout)
	defer cancel()

	ids, err := a.queries.HikerIDs(ctx, caller)
	if err != nil {
		a.logger.Error("failed to list hikers", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load hikers")
		return
	}
	if ids == nil {
		ids = []string{}
	}

	writeJSON(w, http.StatusOK, map[string][]string{"hikers": ids})
}

// telemetryResponse is the polling payload shape the dashboard expects.
type telemetryResponse struct {
	HikerID     string   `json:"id_pendaki"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Temperature *float64 `json:"suhu"`
	Humidity    *float64 `json:"kelembaban"`
	SOSActive   bool     `json:"sos"`
	Timestamp   string   `json:"timestamp"`
}

func (a *App) handleHikerData(w http.ResponseWriter, r *http.Request, caller model.Identity) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	hikerID := strings.TrimPrefix(r.URL.Path, "/api/data/")
	if hikerID == "" || strings.Contains(hikerID, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestStoreTimeout)
	defer cancel()

	records, err := a.queries.RecentTelemetry(ctx, caller, hikerID)
	if errors.Is(err, query.ErrForbidden) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if err != nil {
		a.logger.Error("failed to load telemetry", "hiker", hikerID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	response := make([]telemetryResponse, 0, len(records))
	for _, rec := range records {
		response = append(response, telemetryResponse{
			HikerID:     rec.HikerID,
			Latitude:    rec.Latitude,
			Longitude:   rec.Longitude,
			Temperature: rec.Temperature,
			Humidity:    rec.Humidity,
			SOSActive:   rec.SOSActive,
			Timestamp:   rec.ObservedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
