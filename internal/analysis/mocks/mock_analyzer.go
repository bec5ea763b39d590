package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"legalease/internal/model"
)

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, text, filename string) model.AnalysisResult {
	args := m.Called(ctx, text, filename)
	return args.Get(0).(model.AnalysisResult)
}

func (m *MockAnalyzer) Answer(ctx context.Context, text, question string) model.AnswerResult {
	args := m.Called(ctx, text, question)
	return args.Get(0).(model.AnswerResult)
}
