package mocks

import (
	"github.com/stretchr/testify/mock"

	"legalease/internal/model"
)

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(text, filename string) string {
	args := m.Called(text, filename)
	return args.String(0)
}

func (m *MockDocumentRepository) Get(id string) (model.Document, bool) {
	args := m.Called(id)
	return args.Get(0).(model.Document), args.Bool(1)
}

func (m *MockDocumentRepository) UpdateAnalysis(id string, result model.AnalysisResult) bool {
	args := m.Called(id, result)
	return args.Bool(0)
}

func (m *MockDocumentRepository) Delete(id string) bool {
	args := m.Called(id)
	return args.Bool(0)
}

func (m *MockDocumentRepository) Sweep() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockDocumentRepository) Stats() model.StoreStats {
	args := m.Called()
	return args.Get(0).(model.StoreStats)
}
