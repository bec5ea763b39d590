package mocks

import (
	"github.com/stretchr/testify/mock"

	"legalease/internal/extract"
)

type MockTextExtractor struct {
	mock.Mock
}

func (m *MockTextExtractor) ExtractReader(src extract.Source) (extract.Result, error) {
	args := m.Called(src)
	return args.Get(0).(extract.Result), args.Error(1)
}

func (m *MockTextExtractor) ExtractBytes(data []byte) (extract.Result, error) {
	args := m.Called(data)
	return args.Get(0).(extract.Result), args.Error(1)
}
