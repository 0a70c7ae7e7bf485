package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockNotepadRepository struct {
	mock.Mock
}

func (m *MockNotepadRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockNotepadRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockNotepadRepository) CreateNotepad(ctx context.Context, params CreateNotepadParams) (Notepad, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Notepad), args.Error(1)
}
func (m *MockNotepadRepository) GetNotepad(ctx context.Context, id string) (Notepad, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Notepad), args.Error(1)
}
func (m *MockNotepadRepository) UpdateNotepadContent(ctx context.Context, params UpdateContentParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}
func (m *MockNotepadRepository) CreateFeedback(ctx context.Context, params CreateFeedbackParams) (Feedback, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Feedback), args.Error(1)
}
func (m *MockNotepadRepository) ListFeedback(ctx context.Context, notepadId string) ([]Feedback, error) {
	args := m.Called(ctx, notepadId)
	return args.Get(0).([]Feedback), args.Error(1)
}
func (m *MockNotepadRepository) CreateFile(ctx context.Context, params CreateFileParams) (File, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(File), args.Error(1)
}
func (m *MockNotepadRepository) ListFiles(ctx context.Context, notepadId string) ([]File, error) {
	args := m.Called(ctx, notepadId)
	return args.Get(0).([]File), args.Error(1)
}
func (m *MockNotepadRepository) GetFile(ctx context.Context, notepadId, fileId string) (File, error) {
	args := m.Called(ctx, notepadId, fileId)
	return args.Get(0).(File), args.Error(1)
}
