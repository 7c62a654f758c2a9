package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/notifications"
)

func setupServer(t *testing.T) (*Manager, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := NewManager(zap.NewNop())
	router := gin.New()
	router.GET("/ws/alerts", manager.ServeGin)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		manager.Close()
	})
	return manager, server
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/alerts" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) notifications.WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg notifications.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestManager_RoutesAlertsBySubscription(t *testing.T) {
	manager, server := setupServer(t)

	subscribed := uuid.New()
	other := uuid.New()

	conn := dial(t, server, "?company_id="+subscribed.String())
	require.Eventually(t, func() bool { return manager.GetConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, manager.Notify(ctx, notifications.NewAlert(notifications.KindAnomaly, other, notifications.SeverityWarning, "other", "")))
	require.NoError(t, manager.Notify(ctx, notifications.NewAlert(notifications.KindAnomaly, subscribed, notifications.SeverityWarning, "mine", "")))

	msg := readMessage(t, conn)
	assert.Equal(t, notifications.MessageTypeAlert, msg.Type)
	require.NotNil(t, msg.Alert)
	assert.Equal(t, "mine", msg.Alert.Title)
	assert.Equal(t, subscribed, msg.Alert.CompanyID)
}

func TestManager_SubscribeAndPing(t *testing.T) {
	manager, server := setupServer(t)

	conn := dial(t, server, "")
	require.Eventually(t, func() bool { return manager.GetConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	companyID := uuid.New()
	require.NoError(t, conn.WriteJSON(notifications.WebSocketMessage{
		Type:       notifications.MessageTypeSubscribe,
		CompanyIDs: []string{companyID.String()},
	}))

	reply := readMessage(t, conn)
	assert.Equal(t, notifications.MessageTypeSubscribed, reply.Type)
	assert.Equal(t, []string{companyID.String()}, reply.CompanyIDs)

	require.NoError(t, conn.WriteJSON(notifications.WebSocketMessage{Type: notifications.MessageTypePing}))
	assert.Equal(t, notifications.MessageTypePong, readMessage(t, conn).Type)

	require.NoError(t, manager.Notify(context.Background(), notifications.NewAlert(notifications.KindStaleData, companyID, notifications.SeverityInfo, "stale", "")))
	msg := readMessage(t, conn)
	require.NotNil(t, msg.Alert)
	assert.Equal(t, notifications.KindStaleData, msg.Alert.Kind)
}

func TestManager_DisconnectAndClose(t *testing.T) {
	manager, server := setupServer(t)

	conn := dial(t, server, "")
	require.Eventually(t, func() bool { return manager.GetConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return manager.GetConnectionCount() == 0 }, time.Second, 10*time.Millisecond)

	manager.Close()
	err := manager.Notify(context.Background(), notifications.NewAlert(notifications.KindAnomaly, uuid.New(), notifications.SeverityInfo, "late", ""))
	assert.ErrorIs(t, err, ErrHubClosed)
}
