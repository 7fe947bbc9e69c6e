package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylark-radio/skylark/internal/db"
	"github.com/skylark-radio/skylark/internal/model"
)

// stubStore satisfies db.Store for the handlers under test; routes
// that reach an unstubbed method panic, which is what we want.
type stubStore struct {
	db.Store
	msgs map[string][]*model.BroadcastMsg
}

func (s *stubStore) MessagesByAfosID(afosID string) ([]*model.BroadcastMsg, error) {
	return s.msgs[afosID], nil
}

func adminRouter(t *testing.T, store db.Store) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler("test-secret", "", store, nil, nil, nil)
	r := gin.New()
	h.Register(r)
	token, err := GenerateJWT("operator", "test-secret")
	require.NoError(t, err)
	return r, token
}

func TestMessagesByProduct(t *testing.T) {
	now := time.Now().UTC()
	store := &stubStore{msgs: map[string][]*model.BroadcastMsg{
		"OMATORMAF": {
			{ID: 1, InputMessage: &model.InputMessage{ID: 1, AfosID: "OMATORMAF", EffectiveTime: now}},
			{ID: 2, InputMessage: &model.InputMessage{ID: 2, AfosID: "OMATORMAF", EffectiveTime: now}},
		},
	}}
	r, token := adminRouter(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/messages/OMATORMAF", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Messages []*model.BroadcastMsg `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Messages, 2)
}

func TestMessagesByProductUnknown(t *testing.T) {
	r, token := adminRouter(t, &stubStore{msgs: map[string][]*model.BroadcastMsg{}})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/messages/KSUXSVRSUX", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMessagesRequiresAuth(t *testing.T) {
	r, _ := adminRouter(t, &stubStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/messages/OMATORMAF", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
