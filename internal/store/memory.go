package store

import (
	"context"
	"sync"
	"time"

	"github.com/planforge/api/internal/model"
)

// MemoryStore is the in-memory fallback used when no database is
// configured, and by tests. It enforces the same conditional transitions
// as the Postgres store.
type MemoryStore struct {
	mu       sync.RWMutex
	reports  map[string]*model.Report
	profiles map[string]*model.Profile
	payments []*model.Payment
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports:  make(map[string]*model.Report),
		profiles: make(map[string]*model.Profile),
	}
}

func (s *MemoryStore) CreateReport(_ context.Context, r *model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[r.ReportID]; exists {
		return ErrDuplicate
	}
	cp := *r
	s.reports[r.ReportID] = &cp
	return nil
}

func (s *MemoryStore) GetReport(_ context.Context, reportID string) (*model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[reportID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListReports(_ context.Context, userID string) ([]*model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reports []*model.Report
	for _, r := range s.reports {
		if r.UserID == userID {
			cp := *r
			reports = append(reports, &cp)
		}
	}
	return reports, nil
}

func (s *MemoryStore) MarkProcessing(_ context.Context, reportID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	if r.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	if r.Status == model.ReportStatusQueued {
		r.Status = model.ReportStatusProcessing
	}
	return nil
}

func (s *MemoryStore) CompleteReport(_ context.Context, reportID string, previewPath, fullPath *string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	if r.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	r.Status = model.ReportStatusCompleted
	if previewPath != nil {
		r.PreviewPath = previewPath
	}
	if fullPath != nil {
		r.FullPath = fullPath
	}
	t := completedAt
	r.CompletedAt = &t
	return nil
}

func (s *MemoryStore) FailReport(_ context.Context, reportID, errorMessage string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	if r.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	r.Status = model.ReportStatusFailed
	msg := errorMessage
	r.ErrorMessage = &msg
	t := completedAt
	r.CompletedAt = &t
	return nil
}

func (s *MemoryStore) SetPreviewPath(_ context.Context, reportID, previewPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	if r.Status != model.ReportStatusCompleted {
		return ErrNotFound
	}
	p := previewPath
	r.PreviewPath = &p
	return nil
}

func (s *MemoryStore) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpsertPlan(_ context.Context, userID string, plan model.PlanTier, expiry *time.Time, role model.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[userID] = &model.Profile{
		UserID:     userID,
		Plan:       plan,
		PlanExpiry: expiry,
		Role:       role,
		UpdatedAt:  time.Now(),
	}
	return nil
}

func (s *MemoryStore) RecordPayment(_ context.Context, p *model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.payments = append(s.payments, &cp)
	return nil
}

// Payments returns recorded payments; used by tests.
func (s *MemoryStore) Payments() []*model.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Payment, len(s.payments))
	copy(out, s.payments)
	return out
}
