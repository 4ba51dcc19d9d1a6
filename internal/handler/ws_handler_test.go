package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrichat/internal/app/store"
	"agrichat/internal/app/user"
)

func TestWebSocket_RejectsMissingToken(t *testing.T) {
	deps, _, _, _ := newTestDeps()

	rec := doJSON(t, deps, http.MethodGet, "/ws", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebSocket_RejectsInvalidToken(t *testing.T) {
	deps, _, _, _ := newTestDeps()

	rec := doJSON(t, deps, http.MethodGet, "/ws?token=not-a-token", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebSocket_RejectsUnknownAccount(t *testing.T) {
	deps, users, _, _ := newTestDeps()
	users.getUserByID = func(ctx context.Context, id string) (user.User, error) {
		return user.User{}, store.ErrNotFound
	}

	// Token is well formed but its account no longer exists.
	rec := doJSON(t, deps, http.MethodGet, "/ws?token="+tokenFor(t, testFarmer), "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebSocket_ConnectEstablishesPresence(t *testing.T) {
	deps, users, _, _ := newTestDeps()
	users.getUserByID = func(ctx context.Context, id string) (user.User, error) {
		require.Equal(t, testFarmer.ID, id)
		return testFarmer, nil
	}

	srv := httptest.NewServer(Router(deps))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + tokenFor(t, testFarmer)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool {
		return deps.Hub.IsOnline(testFarmer.ID)
	}, 2*time.Second, 10*time.Millisecond)

	// The new connection receives its own online transition.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"user_online"`)
	assert.Contains(t, string(frame), testFarmer.ID)

	conn.Close()

	require.Eventually(t, func() bool {
		return !deps.Hub.IsOnline(testFarmer.ID)
	}, 2*time.Second, 10*time.Millisecond)
}
