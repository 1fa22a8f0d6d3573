package service

import (
	"context"

	"vcf-drop/internal/domain"
	"vcf-drop/internal/export"
)

// CampaignService runs submissions and admin operations against the store
type CampaignService interface {
	// Status returns the public campaign view, locking first if the countdown
	// has expired
	Status(ctx context.Context) (*domain.CampaignStatus, error)

	// Submit validates and decides a submission. Rejections come back as a
	// Decision; only invalid input and store failures are errors.
	Submit(ctx context.Context, name, phone string) (*domain.Decision, error)

	// ActiveGroup returns the group link shown after joining
	ActiveGroup(ctx context.Context) (*domain.GroupLink, error)

	// RefreshCountdown persists the lock if the countdown has expired
	RefreshCountdown(ctx context.Context) (bool, error)

	Dashboard(ctx context.Context) (*domain.Dashboard, error)
	Contacts(ctx context.Context) ([]domain.Contact, error)
	SetTarget(ctx context.Context, target int) (*domain.CampaignStatus, error)
	Lock(ctx context.Context) (*domain.CampaignStatus, error)
	Unlock(ctx context.Context) (*domain.CampaignStatus, error)
	Groups(ctx context.Context) ([]domain.GroupLink, error)
	PutGroups(ctx context.Context, groups []domain.GroupLink) ([]domain.GroupLink, error)
	ActivateGroup(ctx context.Context, id string) ([]domain.GroupLink, error)
	Reset(ctx context.Context) (*domain.CampaignStatus, error)

	ExportManifest(ctx context.Context) ([]export.File, error)
	ExportAll(ctx context.Context) (*Export, error)
	ExportBatch(ctx context.Context, n int) (*Export, error)
	ExportOverflow(ctx context.Context) (*Export, error)
}

// AdminAuthService checks the shared admin credential and issues session tokens
type AdminAuthService interface {
	// Login verifies credential and returns a signed token
	Login(ctx context.Context, credential string) (*AdminToken, error)

	// ValidateToken verifies a token issued by Login
	ValidateToken(token string) (*AdminClaims, error)
}

// Runner is a background task with a lifecycle
type Runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Services aggregates all service interfaces
type Services struct {
	Campaign  CampaignService
	AdminAuth AdminAuthService
	Countdown Runner
}
