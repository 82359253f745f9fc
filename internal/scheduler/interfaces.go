package scheduler

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import "context"

// JobRunner runs the periodic freshness jobs
type JobRunner interface {
	RecordSnapshot(ctx context.Context) error
	RunAdminDigest(ctx context.Context) error
	RunAuthorDigests(ctx context.Context) error
}

// SettingsRefresher reloads settings changed by another process
type SettingsRefresher interface {
	Refresh(ctx context.Context) (bool, error)
}
