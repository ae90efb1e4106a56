package book

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (Book, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Book), args.Error(1)
}

func (m *mockRepo) GetByISBN(ctx context.Context, isbn string) (Book, error) {
	args := m.Called(ctx, isbn)
	return args.Get(0).(Book), args.Error(1)
}

func (m *mockRepo) Search(ctx context.Context, text string) ([]Book, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Book), args.Error(1)
}

func (m *mockRepo) Save(ctx context.Context, b Book) (Book, error) {
	args := m.Called(ctx, b)
	return args.Get(0).(Book), args.Error(1)
}

func (m *mockRepo) GetAll(ctx context.Context) ([]Book, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Book), args.Error(1)
}

type mockProvider struct {
	mock.Mock
	name string
}

func newMockProvider(name string) *mockProvider {
	return &mockProvider{name: name}
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) SearchByISBN(ctx context.Context, isbn string) (Book, bool, error) {
	args := m.Called(ctx, isbn)
	return args.Get(0).(Book), args.Bool(1), args.Error(2)
}

func (m *mockProvider) SearchByText(ctx context.Context, query string) ([]Book, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Book), args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}
