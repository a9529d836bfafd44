package loguseraction

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"entitlement-service/internal/common/logger"
	"entitlement-service/internal/models"
	"entitlement-service/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) Index(ctx context.Context, entry models.AuditLogEntry) error {
	return m.Called(ctx, entry).Error(0)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestHandler(t *testing.T, mirror Mirror) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := NewHandler(&Config{Timeout: 5 * time.Second, Index: "user-actions"}, repository.NewAuditStore(db), mirror, logger.NewTestLogger(t))
	h.newID = func() string { return "entry-1" }
	return h, sqlMock
}

func newTestES(t *testing.T, status int, seen chan<- string) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			seen <- r.Method + " " + r.URL.Path + " " + string(body)
		}
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

// ==========================
// Log Tests
// ==========================

func TestHandler_Log_Success(t *testing.T) {
	h, sqlMock := createTestHandler(t, nil)

	sqlMock.ExpectExec(`INSERT INTO user_action`).
		WithArgs("entry-1", "user-1", "export_clicked", []byte(`{"page":"pricing"}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	logErr := h.Log(context.Background(), "user-1", "export_clicked", json.RawMessage(`{"page":"pricing"}`))
	assert.Nil(t, logErr)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestHandler_Log_SoftNoOp(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		action string
	}{
		{"missing user", "", "export_clicked"},
		{"missing action", "user-1", "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, sqlMock := createTestHandler(t, nil)
			assert.Nil(t, h.Log(context.Background(), tt.userID, tt.action, nil))
			assert.NoError(t, sqlMock.ExpectationsWereMet())
		})
	}
}

func TestHandler_Log_NullMetadata(t *testing.T) {
	h, sqlMock := createTestHandler(t, nil)

	sqlMock.ExpectExec(`INSERT INTO user_action`).
		WithArgs("entry-1", "user-1", "login", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.Nil(t, h.Log(context.Background(), "user-1", "login", json.RawMessage(`null`)))
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestHandler_Log_DatabaseFailure(t *testing.T) {
	mirror := &MockMirror{}
	h, sqlMock := createTestHandler(t, mirror)

	sqlMock.ExpectExec(`INSERT INTO user_action`).WillReturnError(stderrors.New("relation does not exist"))

	logErr := h.Log(context.Background(), "user-1", "login", nil)
	require.NotNil(t, logErr)
	assert.Equal(t, SinkDatabase, logErr.Sink)
	assert.Contains(t, logErr.Error(), "relation does not exist")
	mirror.AssertNotCalled(t, "Index", mock.Anything, mock.Anything)
}

func TestHandler_Log_MirrorFailure(t *testing.T) {
	mirror := &MockMirror{}
	h, sqlMock := createTestHandler(t, mirror)

	sqlMock.ExpectExec(`INSERT INTO user_action`).WillReturnResult(sqlmock.NewResult(1, 1))
	mirror.On("Index", mock.Anything, mock.MatchedBy(func(e models.AuditLogEntry) bool {
		return e.ID == "entry-1" && e.Action == "login"
	})).Return(stderrors.New("cluster red"))

	logErr := h.Log(context.Background(), "user-1", "login", nil)
	require.NotNil(t, logErr)
	assert.Equal(t, SinkElasticsearch, logErr.Sink)
	mirror.AssertExpectations(t)
}

func TestHandler_Execute_AlwaysOK(t *testing.T) {
	h, sqlMock := createTestHandler(t, nil)
	sqlMock.ExpectExec(`INSERT INTO user_action`).WillReturnError(stderrors.New("down"))

	out, err := h.Execute(context.Background(), &Input{UserID: "user-1", Action: "login"})
	require.NoError(t, err)
	assert.True(t, out.OK)
}

// ==========================
// ESMirror Tests
// ==========================

func TestESMirror_Index(t *testing.T) {
	seen := make(chan string, 1)
	mirror := NewESMirror(newTestES(t, http.StatusCreated, seen), "user-actions")

	err := mirror.Index(context.Background(), models.AuditLogEntry{ID: "entry-1", UserID: "user-1", Action: "login"})
	require.NoError(t, err)

	req := <-seen
	assert.Contains(t, req, "PUT /user-actions/_doc/entry-1")
	assert.Contains(t, req, `"action":"login"`)
}

func TestESMirror_IndexError(t *testing.T) {
	mirror := NewESMirror(newTestES(t, http.StatusBadRequest, nil), "user-actions")

	err := mirror.Index(context.Background(), models.AuditLogEntry{ID: "entry-1", UserID: "user-1", Action: "login"})
	assert.ErrorContains(t, err, "400")
}
