package storage

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, key, r, size, contentType)
	return args.Error(0)
}

func (m *MockFileStore) PresignedURL(ctx context.Context, key, filename string, expires time.Duration) (string, error) {
	args := m.Called(ctx, key, filename, expires)
	return args.String(0), args.Error(1)
}
