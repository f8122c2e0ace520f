package gameserver

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openvtt/tabletop/internal/game/room"
	"github.com/openvtt/tabletop/internal/protocol"
	"github.com/openvtt/tabletop/internal/storage/postgres"
)

const testGameID int64 = 7

// fakeCharacterStore serves ownership lookups from a fixed map.
type fakeCharacterStore struct {
	owners map[int64]int64
}

func (f *fakeCharacterStore) Owner(_ context.Context, characterID int64) (int64, error) {
	owner, ok := f.owners[characterID]
	if !ok {
		return 0, postgres.ErrCharacterNotFound
	}
	return owner, nil
}

// fakeMessageStore records inserts and assigns ids the way the database would.
type fakeMessageStore struct {
	mu       sync.Mutex
	failWith error
	nextID   int64
	inserted []postgres.Message
}

func (f *fakeMessageStore) Insert(_ context.Context, m *postgres.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.nextID++
	m.ID = f.nextID
	m.CreatedAt = time.Now().UTC()
	f.inserted = append(f.inserted, *m)
	return nil
}

func (f *fakeMessageStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserted)
}

// recvFrame pops the next queued frame, failing the test when none is queued.
func recvFrame(t *testing.T, o *room.Outbox) []byte {
	t.Helper()
	select {
	case frame, ok := <-o.Frames():
		require.True(t, ok, "outbox closed before frame was read")
		return frame
	default:
		t.Fatal("expected a queued frame, outbox is empty")
		return nil
	}
}

// recvAs decodes the next queued frame into out.
func recvAs(t *testing.T, o *room.Outbox, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(recvFrame(t, o), out))
}

// assertNoFrame fails the test when the outbox holds a frame.
func assertNoFrame(t *testing.T, o *room.Outbox, msgAndArgs ...any) {
	t.Helper()
	select {
	case frame := <-o.Frames():
		require.Fail(t, "unexpected frame", "got %s (%v)", frame, msgAndArgs)
	default:
	}
}

// joinPair admits a DM and a player into the test game.
func joinPair(t *testing.T, rooms *room.Registry) (dm, player *room.Session) {
	t.Helper()
	dm = rooms.Join(1, "dm", testGameID, protocol.RoleDM)
	player = rooms.Join(2, "alice", testGameID, protocol.RolePlayer)
	return dm, player
}

var errStoreDown = errors.New("store down")
