package storage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/JakeFAU/jobsignal/internal/scanner"
)

// MockScanStore is a testify mock of scanner.ScanStore.
type MockScanStore struct {
	mock.Mock
}

// Save is the mock implementation of the Save method.
func (m *MockScanStore) Save(ctx context.Context, rec scanner.ScanRecord) (scanner.SaveResult, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(scanner.SaveResult), args.Error(1) //nolint:wrapcheck,forcetypeassert
}

// History is the mock implementation of the History method.
func (m *MockScanStore) History(ctx context.Context, limit int) ([]scanner.ScanRecord, error) {
	args := m.Called(ctx, limit)
	recs, _ := args.Get(0).([]scanner.ScanRecord)
	return recs, args.Error(1) //nolint:wrapcheck
}

// Ping is the mock implementation of the Ping method.
func (m *MockScanStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0) //nolint:wrapcheck
}

// Close is the mock implementation of the Close method.
func (m *MockScanStore) Close() error {
	args := m.Called()
	return args.Error(0) //nolint:wrapcheck
}
