package gameserver

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/openvtt/tabletop/internal/game/room"
	"github.com/openvtt/tabletop/internal/protocol"
)

const testChatMaxLen = 500

func newChatHandler(t *testing.T) (*ChatHandler, *room.Registry, *fakeMessageStore) {
	t.Helper()
	rooms := room.NewRegistry(16)
	messages := &fakeMessageStore{}
	h := NewChatHandler(rooms, messages, testChatMaxLen, zaptest.NewLogger(t))
	return h, rooms, messages
}

func TestSend_GroupMessageReachesEveryoneIncludingSender(t *testing.T) {
	h, rooms, messages := newChatHandler(t)
	dm, player := joinPair(t, rooms)

	h.Send(context.Background(), player, protocol.ChatMessage{Content: "hello"})

	for _, sess := range []*room.Session{dm, player} {
		var got protocol.ChatMessageBroadcast
		recvAs(t, sess.Outbox, &got)
		assert.Equal(t, protocol.TypeChatMessage, got.Type)
		assert.Equal(t, "hello", got.Content)
		assert.Equal(t, int64(2), got.SenderID)
		assert.Equal(t, "alice", got.SenderName)
		assert.Nil(t, got.RecipientID)
		assert.Equal(t, int64(1), got.ID, "routed copy carries the assigned id")
		assert.False(t, got.CreatedAt.IsZero())
	}
	assert.Equal(t, 1, messages.count())
}

func TestSend_DirectMessageOnlySenderAndRecipient(t *testing.T) {
	h, rooms, messages := newChatHandler(t)
	dm, player := joinPair(t, rooms)
	bystander := rooms.Join(3, "carol", testGameID, protocol.RolePlayer)

	recipient := dm.UserID
	h.Send(context.Background(), player, protocol.ChatMessage{Content: "psst", RecipientID: &recipient})

	for _, sess := range []*room.Session{dm, player} {
		var got protocol.ChatMessageBroadcast
		recvAs(t, sess.Outbox, &got)
		assert.Equal(t, "psst", got.Content)
		require.NotNil(t, got.RecipientID)
		assert.Equal(t, recipient, *got.RecipientID)
	}
	assertNoFrame(t, bystander.Outbox, "direct messages stay between sender and recipient")
	assert.Equal(t, 1, messages.count())
}

func TestSend_DirectMessageToOfflineRecipientStillPersisted(t *testing.T) {
	h, rooms, messages := newChatHandler(t)
	dm, player := joinPair(t, rooms)

	offline := int64(999)
	h.Send(context.Background(), player, protocol.ChatMessage{Content: "anyone there", RecipientID: &offline})

	var got protocol.ChatMessageBroadcast
	recvAs(t, player.Outbox, &got)
	assert.Equal(t, "anyone there", got.Content)
	assertNoFrame(t, dm.Outbox)
	assert.Equal(t, 1, messages.count(), "the recipient can still read it from history")
}

func TestSend_EmptyContentDropped(t *testing.T) {
	h, rooms, messages := newChatHandler(t)
	dm, player := joinPair(t, rooms)

	h.Send(context.Background(), player, protocol.ChatMessage{Content: ""})

	assertNoFrame(t, dm.Outbox)
	assertNoFrame(t, player.Outbox)
	assert.Zero(t, messages.count())
}

func TestSend_OversizedContentDropped(t *testing.T) {
	h, rooms, messages := newChatHandler(t)
	dm, player := joinPair(t, rooms)

	h.Send(context.Background(), player, protocol.ChatMessage{Content: strings.Repeat("a", testChatMaxLen+1)})

	assertNoFrame(t, dm.Outbox, "oversized messages are neither broadcast")
	assertNoFrame(t, player.Outbox)
	assert.Zero(t, messages.count(), "nor persisted")
}

func TestSend_LimitCountsRunesNotBytes(t *testing.T) {
	h, rooms, messages := newChatHandler(t)
	dm, player := joinPair(t, rooms)

	// 500 three-byte runes: over the limit in bytes, exactly at it in runes.
	h.Send(context.Background(), player, protocol.ChatMessage{Content: strings.Repeat("世", testChatMaxLen)})

	recvFrame(t, dm.Outbox)
	recvFrame(t, player.Outbox)
	assert.Equal(t, 1, messages.count())
}

func TestSend_MalformedRollDropped(t *testing.T) {
	h, rooms, messages := newChatHandler(t)
	dm, player := joinPair(t, rooms)

	h.Send(context.Background(), player, protocol.ChatMessage{
		Content: "rolled a 20, honest",
		Roll:    &protocol.Roll{Sides: 20, Count: 1, Results: []int{3}, Total: 20},
	})

	assertNoFrame(t, dm.Outbox)
	assertNoFrame(t, player.Outbox)
	assert.Zero(t, messages.count())
}

func TestSend_ValidRollRoutedWithPayload(t *testing.T) {
	h, rooms, _ := newChatHandler(t)
	dm, player := joinPair(t, rooms)

	h.Send(context.Background(), player, protocol.ChatMessage{
		Content: "attack roll",
		Roll:    &protocol.Roll{Sides: 20, Count: 2, Results: []int{3, 17}, Total: 20},
	})

	var got protocol.ChatMessageBroadcast
	recvAs(t, dm.Outbox, &got)
	require.NotNil(t, got.Roll)
	assert.Equal(t, 20, got.Roll.Total)
	assert.Equal(t, []int{3, 17}, got.Roll.Results)
}

func TestSend_InsertFailureNotBroadcast(t *testing.T) {
	h, rooms, messages := newChatHandler(t)
	dm, player := joinPair(t, rooms)
	messages.failWith = errStoreDown

	h.Send(context.Background(), player, protocol.ChatMessage{Content: "hello"})

	assertNoFrame(t, dm.Outbox, "a message that was not persisted is not delivered")
	assertNoFrame(t, player.Outbox)
}
