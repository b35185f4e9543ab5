package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/abelzeko/waterwatch/internal/entities"
)

type sendCall struct {
	recipients []string
	subject    string
	body       string
}

// fakeMailer records Send calls and fails for configured recipients
type fakeMailer struct {
	mu     sync.Mutex
	calls  []sendCall
	failOn map[string]error
	block  bool
}

func (m *fakeMailer) Send(ctx context.Context, recipients []string, subject, body string) error {
	m.mu.Lock()
	m.calls = append(m.calls, sendCall{
		recipients: append([]string(nil), recipients...),
		subject:    subject,
		body:       body,
	})
	block := m.block
	var err error
	for _, r := range recipients {
		if e, ok := m.failOn[r]; ok {
			err = e
		}
	}
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (m *fakeMailer) Calls() []sendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sendCall(nil), m.calls...)
}

// fakeStore is an in-memory ThresholdStore
type fakeStore struct {
	users         []int64
	thresholds    map[int64]entities.UserThresholds
	recipients    map[int64][]string
	listErr       error
	thresholdErrs map[int64]error
}

func (s *fakeStore) ListUsersWithThresholds(context.Context) ([]int64, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.users, nil
}

func (s *fakeStore) GetUserThresholds(_ context.Context, userID int64) (entities.UserThresholds, error) {
	if err := s.thresholdErrs[userID]; err != nil {
		return nil, err
	}
	return s.thresholds[userID], nil
}

func (s *fakeStore) GetRecipients(_ context.Context, userID int64) ([]string, error) {
	return s.recipients[userID], nil
}

// fakeRiverRepo is an in-memory RiverRepository
type fakeRiverRepo struct {
	mu     sync.Mutex
	saved  []*entities.Snapshot
	latest *entities.Snapshot
}

func (r *fakeRiverRepo) SaveReadings(_ context.Context, snap *entities.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, snap)
	return nil
}

func (r *fakeRiverRepo) GetLatestReadings(context.Context) (*entities.Snapshot, error) {
	return r.latest, nil
}

func (r *fakeRiverRepo) GetStationHistory(context.Context, string, int) ([]entities.LevelRecord, error) {
	return nil, nil
}

func (r *fakeRiverRepo) Saved() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

// fakeFetcher returns fixed readings or an error
type fakeFetcher struct {
	mu       sync.Mutex
	calls    int
	readings []entities.StationReading
	err      error
}

func (f *fakeFetcher) FetchReadings(context.Context) ([]entities.StationReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.readings, nil
}

var errTransport = errors.New("smtp: 554 rejected")
