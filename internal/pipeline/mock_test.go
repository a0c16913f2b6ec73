package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/clickmap/internal/capture"
	"github.com/sells-group/clickmap/pkg/geocode"
	"github.com/sells-group/clickmap/pkg/windsor"
)

// --- Windsor Mock ---

type mockWindsorClient struct {
	mock.Mock
}

func (m *mockWindsorClient) Connectors(ctx context.Context, q windsor.Query) (*windsor.Response, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*windsor.Response), args.Error(1)
}

// --- Geocode Mock ---

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Geocode(ctx context.Context, label string) (*geocode.Result, error) {
	args := m.Called(ctx, label)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Result), args.Error(1)
}

// --- Converter Mock ---

type mockConverter struct {
	mock.Mock
}

func (m *mockConverter) Convert(ctx context.Context, htmlPath, gifPath string) (*capture.Result, error) {
	args := m.Called(ctx, htmlPath, gifPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*capture.Result), args.Error(1)
}

// --- Publisher Mock ---

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, files ...string) ([]string, error) {
	args := m.Called(ctx, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
