package gameserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/openvtt/tabletop/internal/auth"
	"github.com/openvtt/tabletop/internal/config"
	"github.com/openvtt/tabletop/internal/game/position"
	"github.com/openvtt/tabletop/internal/game/room"
	"github.com/openvtt/tabletop/internal/game/turn"
	"github.com/openvtt/tabletop/internal/protocol"
	"github.com/openvtt/tabletop/internal/storage/postgres"
)

const wsTestSecret = "ws-test-secret"

type wsGameStore struct {
	roles map[int64]map[int64]protocol.Role
}

func (f *wsGameStore) MemberRole(_ context.Context, gameID, userID int64) (protocol.Role, error) {
	members, ok := f.roles[gameID]
	if !ok {
		return "", postgres.ErrGameNotFound
	}
	role, ok := members[userID]
	if !ok {
		return "", postgres.ErrNotAMember
	}
	return role, nil
}

// wsHarness is a fully wired Service behind an httptest listener.
type wsHarness struct {
	srv    *httptest.Server
	rooms  *room.Registry
	turns  *turn.Coordinator
	buffer *position.Buffer
}

func newWSHarness(t *testing.T, grace time.Duration) *wsHarness {
	t.Helper()
	logger := zaptest.NewLogger(t)

	rooms := room.NewRegistry(64)
	turns := turn.NewCoordinator()
	buffer := position.NewBuffer()
	characters := &fakeCharacterStore{owners: map[int64]int64{10: 2}}
	messages := &fakeMessageStore{}

	authn := auth.NewAuthenticator(
		auth.NewVerifier(wsTestSecret),
		&wsGameStore{roles: map[int64]map[int64]protocol.Role{
			testGameID: {1: protocol.RoleDM, 2: protocol.RolePlayer},
		}},
	)

	cfg := config.ServerConfig{
		Host:          "127.0.0.1",
		Port:          0,
		Path:          "/ws",
		WriteTimeout:  time.Second,
		MaxFrameBytes: 16384,
	}
	svc := NewService(
		cfg, grace, authn, rooms, turns,
		NewTurnHandler(rooms, turns, characters, logger),
		NewPositionHandler(rooms, characters, buffer, logger),
		NewRosterHandler(rooms, characters, logger),
		NewChatHandler(rooms, messages, testChatMaxLen, logger),
		logger,
	)

	srv := httptest.NewServer(http.HandlerFunc(svc.handleUpgrade))
	t.Cleanup(srv.Close)

	return &wsHarness{srv: srv, rooms: rooms, turns: turns, buffer: buffer}
}

func (h *wsHarness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "dialing test server")
	t.Cleanup(func() { _ = ws.Close() })
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	return ws
}

func wsToken(t *testing.T, userID int64, username string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid":  userID,
		"name": username,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(wsTestSecret))
	require.NoError(t, err)
	return signed
}

// connect dials and completes the auth handshake, consuming the auth_ok and
// first presence frame.
func (h *wsHarness) connect(t *testing.T, userID int64, username string) *websocket.Conn {
	t.Helper()
	ws := h.dial(t)
	authFrame := fmt.Sprintf(`{"type":"auth","token":%q,"gameId":%d}`, wsToken(t, userID, username), testGameID)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(authFrame)))

	var ok protocol.AuthOK
	readWSAs(t, ws, &ok)
	require.Equal(t, protocol.TypeAuthOK, ok.Type)

	var presence protocol.PresenceBroadcast
	readWSAs(t, ws, &presence)
	require.Equal(t, protocol.TypePresence, presence.Type)
	return ws
}

func readWSAs(t *testing.T, ws *websocket.Conn, out any) {
	t.Helper()
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func expectClose(t *testing.T, ws *websocket.Conn, wantCode int) {
	t.Helper()
	_, _, err := ws.ReadMessage()
	require.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close frame, got %v", err)
	assert.Equal(t, wantCode, closeErr.Code)
}

func TestServeConn_Handshake(t *testing.T) {
	h := newWSHarness(t, 5*time.Second)
	ws := h.dial(t)

	authFrame := fmt.Sprintf(`{"type":"auth","token":%q,"gameId":%d}`, wsToken(t, 2, "alice"), testGameID)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(authFrame)))

	var ok protocol.AuthOK
	readWSAs(t, ws, &ok)
	assert.Equal(t, protocol.TypeAuthOK, ok.Type)
	assert.Nil(t, ok.TurnState, "no turn state before action mode was ever enabled")

	var presence protocol.PresenceBroadcast
	readWSAs(t, ws, &presence)
	assert.Equal(t, []string{"alice"}, presence.Users)
}

func TestServeConn_AuthOKCarriesTurnSnapshot(t *testing.T) {
	h := newWSHarness(t, 5*time.Second)
	h.turns.Enable(testGameID)

	ws := h.dial(t)
	authFrame := fmt.Sprintf(`{"type":"auth","token":%q,"gameId":%d}`, wsToken(t, 2, "alice"), testGameID)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(authFrame)))

	var ok protocol.AuthOK
	readWSAs(t, ws, &ok)
	require.NotNil(t, ok.TurnState, "a reconnecting client gets the live turn state")
	assert.True(t, ok.TurnState.Enabled)
}

func TestServeConn_MissingTokenClosed(t *testing.T) {
	h := newWSHarness(t, 5*time.Second)
	ws := h.dial(t)

	frame := fmt.Sprintf(`{"type":"auth","gameId":%d}`, testGameID)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))
	expectClose(t, ws, protocol.CloseMissingToken)
}

func TestServeConn_BadTokenClosed(t *testing.T) {
	h := newWSHarness(t, 5*time.Second)
	ws := h.dial(t)

	frame := fmt.Sprintf(`{"type":"auth","token":"garbage","gameId":%d}`, testGameID)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))
	expectClose(t, ws, protocol.CloseInvalidToken)
}

func TestServeConn_NonMemberClosed(t *testing.T) {
	h := newWSHarness(t, 5*time.Second)
	ws := h.dial(t)

	frame := fmt.Sprintf(`{"type":"auth","token":%q,"gameId":%d}`, wsToken(t, 99, "mallory"), testGameID)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))
	expectClose(t, ws, protocol.CloseNotAMember)
}

func TestServeConn_UnknownGameClosed(t *testing.T) {
	h := newWSHarness(t, 5*time.Second)
	ws := h.dial(t)

	frame := fmt.Sprintf(`{"type":"auth","token":%q,"gameId":404}`, wsToken(t, 2, "alice"))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))
	expectClose(t, ws, protocol.CloseInvalidGame)
}

func TestServeConn_MessageBeforeAuthClosed(t *testing.T) {
	h := newWSHarness(t, 5*time.Second)
	ws := h.dial(t)

	frame := `{"type":"move","characterId":10,"x":1,"y":2}`
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))
	expectClose(t, ws, protocol.CloseNotAuthenticated)
}

func TestServeConn_GracePeriodTimeout(t *testing.T) {
	h := newWSHarness(t, 100*time.Millisecond)
	ws := h.dial(t)

	expectClose(t, ws, protocol.CloseAuthTimeout)
}

func TestServeConn_UndecodableFrameBeforeAuthIgnored(t *testing.T) {
	h := newWSHarness(t, 5*time.Second)
	ws := h.dial(t)

	// Garbage is ignored; the connection stays open for a proper auth frame.
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	authFrame := fmt.Sprintf(`{"type":"auth","token":%q,"gameId":%d}`, wsToken(t, 2, "alice"), testGameID)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(authFrame)))

	var ok protocol.AuthOK
	readWSAs(t, ws, &ok)
	assert.Equal(t, protocol.TypeAuthOK, ok.Type)
}

func TestServeConn_MoveRoundTrip(t *testing.T) {
	h := newWSHarness(t, 5*time.Second)
	dm := h.connect(t, 1, "dm")
	player := h.connect(t, 2, "alice")

	// The DM's connection sees alice arrive.
	var presence protocol.PresenceBroadcast
	readWSAs(t, dm, &presence)
	require.Equal(t, []string{"alice", "dm"}, presence.Users)

	move := `{"type":"move","characterId":10,"x":3.5,"y":4.5,"angle":90}`
	require.NoError(t, player.WriteMessage(websocket.TextMessage, []byte(move)))

	var got protocol.MoveBroadcast
	readWSAs(t, dm, &got)
	assert.Equal(t, protocol.TypeMove, got.Type)
	assert.Equal(t, int64(10), got.CharacterID)
	assert.Equal(t, 3.5, got.X)
	assert.Equal(t, 4.5, got.Y)

	assert.Eventually(t, func() bool { return h.buffer.Len() == 1 },
		time.Second, 10*time.Millisecond, "the accepted move must be queued for persistence")
}

func TestServeConn_DisconnectDropsEmptyRoomState(t *testing.T) {
	h := newWSHarness(t, 5*time.Second)
	ws := h.connect(t, 2, "alice")
	h.turns.Enable(testGameID)

	require.NoError(t, ws.Close())

	assert.Eventually(t, func() bool {
		return h.rooms.RoomCount() == 0 && h.turns.Snapshot(testGameID) == nil
	}, time.Second, 10*time.Millisecond, "last disconnect tears down room and turn state")
}
