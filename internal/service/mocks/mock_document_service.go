package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"legalease/internal/extract"
	"legalease/internal/model"
	"legalease/internal/service"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Analyze(ctx context.Context, src extract.Source, filename string) (*service.AnalyzeOutcome, error) {
	args := m.Called(ctx, src, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AnalyzeOutcome), args.Error(1)
}

func (m *MockDocumentService) AnalyzeBytes(ctx context.Context, data []byte, filename string) (*service.AnalyzeOutcome, error) {
	args := m.Called(ctx, data, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AnalyzeOutcome), args.Error(1)
}

func (m *MockDocumentService) Ask(ctx context.Context, id, question string) (*model.AnswerResult, error) {
	args := m.Called(ctx, id, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnswerResult), args.Error(1)
}

func (m *MockDocumentService) Info(ctx context.Context, id string) (*model.DocumentInfo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentInfo), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentService) Stats(ctx context.Context) model.StoreStats {
	args := m.Called(ctx)
	return args.Get(0).(model.StoreStats)
}
