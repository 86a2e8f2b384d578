package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"summitsafeguard/go-tracker-server/internal/auth"
	"summitsafeguard/go-tracker-server/internal/model"
	"summitsafeguard/go-tracker-server/internal/store"
)

// accountRequest is the create/update payload. Password is optional on
// update: when omitted the stored hash is left untouched.
type accountRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	BoundHikerID string `json:"bound_hiker_id"`
}

func (req *accountRequest) validate(requirePassword bool) string {
	if strings.TrimSpace(req.Username) == "" {
		return "username is required"
	}
	if requirePassword && req.Password == "" {
		return "password is required"
	}
	role := model.Role(req.Role)
	if !role.Valid() {
		return "role must be rescuer or viewer"
	}
	if role == model.RoleViewer && strings.TrimSpace(req.BoundHikerID) == "" {
		return "viewer accounts require a bound hiker id"
	}
	return ""
}

func (a *App) handleAccounts(w http.ResponseWriter, r *http.Request, caller model.Identity) {
	switch r.Method {
	case http.MethodGet:
		a.listAccounts(w, r)
	case http.MethodPost:
		a.createAccount(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) listAccounts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestStoreTimeout)
	defer cancel()

	accounts, err := a.store.ListAccounts(ctx)
	if err != nil {
		a.logger.Error("failed to list accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load accounts")
		return
	}
	if accounts == nil {
		accounts = []model.Account{}
	}

	writeJSON(w, http.StatusOK, map[string][]model.Account{"accounts": accounts})
}

func (a *App) createAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if msg := req.validate(true); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.logger.Error("failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	account := model.Account{
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: hash,
		Role:         model.Role(req.Role),
	}
	// The binding only means something for viewers.
	if account.Role == model.RoleViewer {
		account.BoundHikerID = strings.TrimSpace(req.BoundHikerID)
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestStoreTimeout)
	defer cancel()

	created, err := a.store.CreateAccount(ctx, account)
	if errors.Is(err, store.ErrDuplicateUsername) {
		writeError(w, http.StatusConflict, "username already exists")
		return
	}
	if err != nil {
		a.logger.Error("failed to create account", "username", account.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	a.logger.Info("account created", "username", created.Username, "role", created.Role)
	writeJSON(w, http.StatusCreated, created)
}

func (a *App) handleAccountByID(w http.ResponseWriter, r *http.Request, caller model.Identity) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getAccount(w, r, id)
	case http.MethodPut:
		a.updateAccount(w, r, id)
	case http.MethodDelete:
		a.deleteAccount(w, r, caller, id)
	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) getAccount(w http.ResponseWriter, r *http.Request, id int64) {
	ctx, cancel := context.WithTimeout(r.Context(), requestStoreTimeout)
	defer cancel()

	account, err := a.store.AccountByID(ctx, id)
	if errors.Is(err, store.ErrAccountNotFound) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		a.logger.Error("failed to load account", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}

	writeJSON(w, http.StatusOK, account)
}

func (a *App) updateAccount(w http.ResponseWriter, r *http.Request, id int64) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if msg := req.validate(false); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestStoreTimeout)
	defer cancel()

	account, err := a.store.AccountByID(ctx, id)
	if errors.Is(err, store.ErrAccountNotFound) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		a.logger.Error("failed to load account", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update account")
		return
	}

	account.Username = strings.TrimSpace(req.Username)
	account.Role = model.Role(req.Role)
	account.BoundHikerID = ""
	if account.Role == model.RoleViewer {
		account.BoundHikerID = strings.TrimSpace(req.BoundHikerID)
	}

	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			a.logger.Error("failed to hash password", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update account")
			return
		}
		account.PasswordHash = hash
	}

	err = a.store.UpdateAccount(ctx, account)
	if errors.Is(err, store.ErrDuplicateUsername) {
		writeError(w, http.StatusConflict, "username already exists")
		return
	}
	if errors.Is(err, store.ErrAccountNotFound) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		a.logger.Error("failed to update account", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update account")
		return
	}

	writeJSON(w, http.StatusOK, account)
}

func (a *App) deleteAccount(w http.ResponseWriter, r *http.Request, caller model.Identity, id int64) {
	// Rejected before the store is touched.
	if id == caller.AccountID {
		writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestStoreTimeout)
	defer cancel()

	err := a.store.DeleteAccount(ctx, id)
	if errors.Is(err, store.ErrAccountNotFound) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		a.logger.Error("failed to delete account", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
