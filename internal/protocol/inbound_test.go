package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Auth(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"auth","token":"abc","gameId":7}`))
	require.NoError(t, err)

	a, ok := msg.(Auth)
	require.True(t, ok)
	assert.Equal(t, "abc", a.Token)
	assert.Equal(t, int64(7), a.GameID)
}

func TestDecode_AuthWithoutTokenStillDecodes(t *testing.T) {
	// A missing token is an authentication failure with its own close code,
	// not a validation failure, so decoding must succeed.
	msg, err := Decode([]byte(`{"type":"auth","gameId":7}`))
	require.NoError(t, err)

	a, ok := msg.(Auth)
	require.True(t, ok)
	assert.Empty(t, a.Token)
}

func TestDecode_Move(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"move","characterId":5,"x":10.5,"y":0,"angle":1.25}`))
	require.NoError(t, err)

	m, ok := msg.(Move)
	require.True(t, ok)
	assert.Equal(t, int64(5), m.CharacterID)
	assert.Equal(t, 10.5, m.X)
	assert.Equal(t, 0.0, m.Y)
	require.NotNil(t, m.Angle)
	assert.Equal(t, 1.25, *m.Angle)
}

func TestDecode_MoveWithoutAngle(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"move","characterId":5,"x":1,"y":2}`))
	require.NoError(t, err)
	assert.Nil(t, msg.(Move).Angle)
}

func TestDecode_MoveMissingField(t *testing.T) {
	cases := map[string]string{
		"no characterId": `{"type":"move","x":1,"y":2}`,
		"no x":           `{"type":"move","characterId":5,"y":2}`,
		"no y":           `{"type":"move","characterId":5,"x":1}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestDecode_DMDrag(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"dm_drag","characterId":5,"x":3,"y":4}`))
	require.NoError(t, err)

	d, ok := msg.(DMDrag)
	require.True(t, ok)
	assert.Equal(t, int64(5), d.CharacterID)
}

func TestDecode_TurnUpdateVariants(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"turn_update","enabled":true}`))
	require.NoError(t, err)
	tu := msg.(TurnUpdate)
	assert.True(t, tu.Enabled)
	assert.Nil(t, tu.Advance)

	msg, err = Decode([]byte(`{"type":"turn_update","enabled":true,"order":[5,9]}`))
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 9}, msg.(TurnUpdate).Order)

	msg, err = Decode([]byte(`{"type":"turn_update","enabled":true,"advance":-1}`))
	require.NoError(t, err)
	require.NotNil(t, msg.(TurnUpdate).Advance)
	assert.Equal(t, -1, *msg.(TurnUpdate).Advance)

	msg, err = Decode([]byte(`{"type":"turn_update","enabled":true,"moveFrom":0,"moveTo":2}`))
	require.NoError(t, err)
	require.NotNil(t, msg.(TurnUpdate).MoveFrom)

	_, err = Decode([]byte(`{"type":"turn_update","enabled":true,"moveFrom":0}`))
	assert.Error(t, err, "moveFrom without moveTo must fail")

	_, err = Decode([]byte(`{"type":"turn_update"}`))
	assert.Error(t, err, "missing enabled must fail")
}

func TestDecode_InitiativeRoll(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"initiative_roll","characterId":5,"roll":17}`))
	require.NoError(t, err)

	r, ok := msg.(InitiativeRoll)
	require.True(t, ok)
	assert.Equal(t, 17, r.Roll)

	_, err = Decode([]byte(`{"type":"initiative_roll","characterId":5}`))
	assert.Error(t, err)
}

func TestDecode_InitiativeSort(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"initiative_sort"}`))
	require.NoError(t, err)
	assert.IsType(t, InitiativeSort{}, msg)
}

func TestDecode_ChatMessage(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"chat_message","content":"hi","recipientId":2}`))
	require.NoError(t, err)

	c, ok := msg.(ChatMessage)
	require.True(t, ok)
	assert.Equal(t, "hi", c.Content)
	require.NotNil(t, c.RecipientID)
	assert.Equal(t, int64(2), *c.RecipientID)

	msg, err = Decode([]byte(`{"type":"chat_message","content":"all"}`))
	require.NoError(t, err)
	assert.Nil(t, msg.(ChatMessage).RecipientID, "absent recipientId means group message")

	_, err = Decode([]byte(`{"type":"chat_message"}`))
	assert.Error(t, err)
}

func TestDecode_ChatMessageWithRoll(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"chat_message","content":"attack!","roll":{"sides":6,"count":2,"results":[3,5],"total":8}}`))
	require.NoError(t, err)

	c := msg.(ChatMessage)
	require.NotNil(t, c.Roll)
	assert.Equal(t, 8, c.Roll.Total)
}

func TestDecode_CharacterFrames(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"character_added","characterId":5,"character":{"id":5,"name":"Grog"}}`))
	require.NoError(t, err)
	added := msg.(CharacterAdded)
	assert.Equal(t, int64(5), added.CharacterID)
	assert.JSONEq(t, `{"id":5,"name":"Grog"}`, string(added.Character))

	msg, err = Decode([]byte(`{"type":"character_removed","characterId":5}`))
	require.NoError(t, err)
	assert.Equal(t, int64(5), msg.(CharacterRemoved).CharacterID)

	_, err = Decode([]byte(`{"type":"character_added"}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"type":"character_added","character":{"id":5}}`))
	assert.Error(t, err, "characterId is required alongside the payload")

	_, err = Decode([]byte(`{"type":"character_added","characterId":5}`))
	assert.Error(t, err, "the payload is required alongside characterId")
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"teleport"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecode_ServerOnlyTypesRejected(t *testing.T) {
	for _, typ := range []string{TypeAuthOK, TypePresence} {
		_, err := Decode([]byte(`{"type":"` + typ + `"}`))
		assert.ErrorIs(t, err, ErrUnknownType, "clients may not send %s", typ)
	}
}

func TestDecode_NonJSON(t *testing.T) {
	_, err := Decode([]byte("not json at all"))
	assert.Error(t, err)
}
