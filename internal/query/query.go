// Package query gates and serves recent telemetry per hiker. It is a pure
// read over the store: the authorization decision happens here, before any
// row is fetched, so a denied caller learns nothing about whether the
// requested hiker exists.
package query

import (
	"context"
	"errors"

	"summitsafeguard/go-tracker-server/internal/model"
	"summitsafeguard/go-tracker-server/internal/store"
)

// ErrForbidden is returned when the caller may not view the requested hiker.
var ErrForbidden = errors.New("access to hiker data denied")

// RecentLimit caps how many readings a single call returns.
const RecentLimit = 10

// Service answers authorization-scoped telemetry queries.
type Service struct {
	store *store.Store
}

// NewService constructs a query service over the given store.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// RecentTelemetry returns up to RecentLimit readings for the hiker, newest
// first. Rescuers may query any hiker; viewers only their bound one. A hiker
// with no data yields an empty slice, not an error.
func (s *Service) RecentTelemetry(ctx context.Context, caller model.Identity, hikerID string) ([]model.TelemetryRecord, error) {
	if !caller.CanViewHiker(hikerID) {
		return nil, ErrForbidden
	}
	return s.store.RecentTelemetry(ctx, hikerID, RecentLimit)
}

// HikerIDs lists the hikers visible to the caller. Viewers see only their
// bound id regardless of what telemetry exists, so the listing leaks nothing
// about other hikers.
func (s *Service) HikerIDs(ctx context.Context, caller model.Identity) ([]string, error) {
	if caller.Role == model.RoleViewer {
		return []string{caller.BoundHikerID}, nil
	}
	return s.store.ListHikerIDs(ctx)
}
