package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"patientportal/internal/portal"
)

type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) List(ctx context.Context) ([]portal.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]portal.Document), args.Error(1)
}

func (m *MockAPI) Upload(ctx context.Context, f portal.File) (portal.Document, error) {
	args := m.Called(ctx, f)
	doc, _ := args.Get(0).(portal.Document)
	return doc, args.Error(1)
}

func (m *MockAPI) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
