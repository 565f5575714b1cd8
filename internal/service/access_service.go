package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/planforge/api/internal/client"
	"github.com/planforge/api/internal/model"
	"github.com/planforge/api/internal/pdf"
	"github.com/planforge/api/internal/store"
)

const (
	// Signed URL TTL bounds. Callers asking outside the window are
	// clamped, not rejected.
	MinSignedURLTTL = 300 * time.Second
	MaxSignedURLTTL = 600 * time.Second
)

// AccessService resolves a caller's plan tier and signs the matching
// artifact variant, deriving the preview on first free-tier access.
type AccessService struct {
	reports  store.ReportStore
	profiles store.ProfileStore
	storage  client.StorageClient
}

func NewAccessService(reports store.ReportStore, profiles store.ProfileStore, storage client.StorageClient) *AccessService {
	return &AccessService{
		reports:  reports,
		profiles: profiles,
		storage:  storage,
	}
}

// GetReportAccess returns time-limited URLs to the full or preview
// artifact depending on the caller's tier.
func (s *AccessService) GetReportAccess(ctx context.Context, userID, reportID string, ttl time.Duration) (*model.ReportAccessResponse, error) {
	report, err := s.reports.GetReport(ctx, reportID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	if report.UserID != userID {
		return nil, ErrForbidden
	}
	if report.Status != model.ReportStatusCompleted {
		return nil, ErrNotReady
	}

	ttl = clampTTL(ttl)
	tier := s.resolveTier(ctx, userID)

	if tier == model.PlanPro {
		return s.signFull(ctx, report, ttl)
	}
	return s.signPreview(ctx, report, ttl)
}

// resolveTier maps a profile onto an effective tier. Missing profiles and
// lookup failures both resolve to free: tier resolution must never block a
// user from the preview they are entitled to.
func (s *AccessService) resolveTier(ctx context.Context, userID string) model.PlanTier {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("Profile lookup failed for %s, treating as free: %v", userID, err)
		}
		return model.PlanFree
	}
	return profile.Tier(time.Now())
}

func (s *AccessService) signFull(ctx context.Context, report *model.Report, ttl time.Duration) (*model.ReportAccessResponse, error) {
	key := FullArtifactKey(report.UserID, report.ReportID)
	if report.FullPath != nil {
		key = *report.FullPath
	}

	if s.storage == nil {
		return s.mockAccess(model.AccessFull, key, ttl), nil
	}

	url, err := s.storage.GetSignedURL(ctx, key, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to sign full artifact: %w", err)
	}

	filename := fmt.Sprintf("business-plan-%s.pdf", report.ReportID)
	downloadURL, err := s.storage.GetSignedDownloadURL(ctx, key, filename, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to sign download URL: %w", err)
	}

	return &model.ReportAccessResponse{
		Type:        model.AccessFull,
		URL:         url,
		DownloadURL: downloadURL,
		ExpiresIn:   int(ttl.Seconds()),
	}, nil
}

func (s *AccessService) signPreview(ctx context.Context, report *model.Report, ttl time.Duration) (*model.ReportAccessResponse, error) {
	key := PreviewArtifactKey(report.ReportID)
	if report.PreviewPath != nil {
		key = *report.PreviewPath
	}

	if s.storage == nil {
		return s.mockAccess(model.AccessPreview, key, ttl), nil
	}

	exists, err := s.storage.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check preview artifact: %w", err)
	}
	if !exists {
		if err := s.derivePreview(ctx, report, key); err != nil {
			return nil, err
		}
	}

	url, err := s.storage.GetSignedURL(ctx, key, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to sign preview artifact: %w", err)
	}

	filename := fmt.Sprintf("business-plan-%s-preview.pdf", report.ReportID)
	downloadURL, err := s.storage.GetSignedDownloadURL(ctx, key, filename, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to sign preview download URL: %w", err)
	}

	return &model.ReportAccessResponse{
		Type:        model.AccessPreview,
		URL:         url,
		DownloadURL: downloadURL,
		ExpiresIn:   int(ttl.Seconds()),
	}, nil
}

// derivePreview synthesizes the preview from the full document: first
// min(2, pageCount) pages, persisted under the canonical preview key.
// Regeneration writes the same key, so concurrent derivations are safe.
func (s *AccessService) derivePreview(ctx context.Context, report *model.Report, previewKey string) error {
	fullKey := FullArtifactKey(report.UserID, report.ReportID)
	if report.FullPath != nil {
		fullKey = *report.FullPath
	}

	body, err := s.storage.Download(ctx, fullKey)
	if err != nil {
		return fmt.Errorf("failed to load full artifact: %w", err)
	}
	defer body.Close()

	src, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read full artifact: %w", err)
	}

	previewBytes, err := pdf.FirstPages(src, pdf.PreviewPages)
	if err != nil {
		return fmt.Errorf("failed to derive preview: %w", err)
	}

	if _, err := s.storage.Upload(ctx, previewKey, bytes.NewReader(previewBytes), "application/pdf"); err != nil {
		return fmt.Errorf("failed to store preview: %w", err)
	}

	if err := s.reports.SetPreviewPath(ctx, report.ReportID, previewKey); err != nil {
		// The artifact is in place; a stale row just means the next
		// access re-checks existence.
		log.Printf("Failed to record preview path for %s: %v", report.ReportID, err)
	}

	return nil
}

func (s *AccessService) mockAccess(t model.AccessType, key string, ttl time.Duration) *model.ReportAccessResponse {
	return &model.ReportAccessResponse{
		Type:        t,
		URL:         fmt.Sprintf("https://cdn.planforge.dev/%s", key),
		DownloadURL: fmt.Sprintf("https://cdn.planforge.dev/%s?download=1", key),
		ExpiresIn:   int(ttl.Seconds()),
	}
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl < MinSignedURLTTL {
		return MinSignedURLTTL
	}
	if ttl > MaxSignedURLTTL {
		return MaxSignedURLTTL
	}
	return ttl
}
