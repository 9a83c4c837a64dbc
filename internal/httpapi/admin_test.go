package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftly-ai/agent-backend/internal/agent"
	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

const adminSecret = "test-secret"

func adminFixture(t *testing.T) (*memStore, http.Handler) {
	t.Helper()
	store := newMemStore()
	handler := NewAdminHandler(store, logging.Default())
	router := New(&Config{
		Logger:          logging.Default(),
		Admin:           handler,
		AdminAuthSecret: adminSecret,
	})
	return store, router
}

func adminToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAdminConversationRequiresToken(t *testing.T) {
	_, server := adminFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/conversations/conv-9", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminConversationRejectsBadToken(t *testing.T) {
	_, server := adminFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/conversations/conv-9", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "wrong-secret"))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminConversationIncludesMetadata(t *testing.T) {
	store, server := adminFixture(t)
	store.seed("conv-9", "+15551234567", "dealer-1", agent.StatusActive)
	_, err := store.AppendMessage(context.Background(), "conv-9", agent.RoleAgent, "Happy to help!", map[string]any{
		"fallback":      false,
		"output_tokens": 42,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/conversations/conv-9", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, adminSecret))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp adminConversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "conv-9", resp.ID)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, float64(42), resp.Messages[0].Metadata["output_tokens"])
}

func TestAdminConversationNotFound(t *testing.T) {
	_, server := adminFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/conversations/missing", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, adminSecret))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
