package storage

import (
	"context"

	"github.com/smartdevs17/workflow-relay/internal/models"
)

// UnavailableStore stands in for a durable backend that could not be reached
// at startup. It behaves as an empty store: listing returns nothing, appends
// hand back the entry without keeping it and clearing does nothing.
type UnavailableStore struct {
	status *StorageStatus
}

// NewUnavailableStore creates a stand-in for backend, remembering why the
// connection attempt failed
func NewUnavailableStore(backend string, cause error) *UnavailableStore {
	return &UnavailableStore{status: lastKnownStatus(backend, false, cause)}
}

// Append returns the entry as if it had been stored
func (u *UnavailableStore) Append(ctx context.Context, entry *models.LogEntry) (*models.LogEntry, error) {
	return cloneEntry(entry), nil
}

// List always returns an empty page
func (u *UnavailableStore) List(ctx context.Context, opts models.ListOptions) (*models.LogPage, error) {
	return models.EmptyLogPage(opts), nil
}

// DeleteLatestWaiting never finds a match
func (u *UnavailableStore) DeleteLatestWaiting(ctx context.Context, match models.WaitingMatch) (*models.LogEntry, error) {
	return nil, nil
}

// Clear is a no-op
func (u *UnavailableStore) Clear(ctx context.Context) (int64, error) {
	return 0, nil
}

// Status returns the outcome of the failed connection attempt
func (u *UnavailableStore) Status(ctx context.Context) *StorageStatus {
	status := *u.status
	return &status
}

// Backend returns the name of the backend that is unavailable
func (u *UnavailableStore) Backend() string {
	return u.status.Backend
}

// Close is a no-op
func (u *UnavailableStore) Close() error {
	return nil
}
