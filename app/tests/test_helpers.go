package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"courier/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockQueueStore struct {
	mock.Mock
}

type MockGroupRegistry struct {
	mock.Mock
}

type MockSessionPusher struct {
	mock.Mock
}

func (m *MockQueueStore) Append(ctx context.Context, key models.QueueKey, message models.Message) error {
	args := m.Called(ctx, key, message)
	return args.Error(0)
}

func (m *MockQueueStore) Drain(ctx context.Context, key models.QueueKey) ([]models.Message, error) {
	args := m.Called(ctx, key)
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockGroupRegistry) Join(ctx context.Context, group, user string) error {
	args := m.Called(ctx, group, user)
	return args.Error(0)
}

func (m *MockGroupRegistry) Members(ctx context.Context, group string) ([]string, error) {
	args := m.Called(ctx, group)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGroupRegistry) IsGroup(ctx context.Context, group string) (bool, error) {
	args := m.Called(ctx, group)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionPusher) Push(owner, target string, payload []byte) bool {
	args := m.Called(owner, target, payload)
	return args.Bool(0)
}

func CreateTestRequest(url, method string, body interface{}) *http.Request {
	var buffer bytes.Buffer
	if body != nil {
		json.NewEncoder(&buffer).Encode(body)
	}

	req := httptest.NewRequest(method, url, &buffer)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func ExecuteHandler(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
