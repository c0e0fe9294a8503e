package rest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBan_Variants(t *testing.T) {
	tests := []struct {
		name string
		data string
		want any
	}{
		{"user", `{"type":0,"targetId":"u1","executorId":"admin"}`, &UserBan{}},
		{"bot", `{"type":1,"targetId":"b1"}`, &BotBan{}},
		{"unknown", `{"type":7,"address":"10.0.0.1"}`, &UnknownBan{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ban, err := DecodeBan([]byte(tt.data))
			require.NoError(t, err)
			assert.IsType(t, tt.want, ban)
		})
	}
}

func TestDecodeBan_Fields(t *testing.T) {
	ban, err := DecodeBan([]byte(`{"type":0,"targetId":"u1","executorId":"admin","reason":"spam","creationDate":"2026-03-01T10:00:00Z"}`))
	require.NoError(t, err)

	userBan := ban.(*UserBan)
	assert.Equal(t, "u1", userBan.TargetID)
	assert.Equal(t, "admin", *userBan.ExecutorID)
	assert.Equal(t, "spam", *userBan.Reason)
	assert.Equal(t, 2026, userBan.CreationDate.Year())
}

func TestDecodeBan_UnknownKeepsRaw(t *testing.T) {
	data := `{"type":9,"extra":true}`
	ban, err := DecodeBan([]byte(data))
	require.NoError(t, err)

	unknown := ban.(*UnknownBan)
	assert.Equal(t, BanType(9), unknown.Info().Type)
	assert.JSONEq(t, data, string(unknown.Raw))
}

func TestDecodeBans(t *testing.T) {
	bans, err := DecodeBans([]byte(`[{"type":0,"targetId":"u1"},{"type":1,"targetId":"b1"}]`))
	require.NoError(t, err)
	require.Len(t, bans, 2)
	assert.IsType(t, &UserBan{}, bans[0])
	assert.IsType(t, &BotBan{}, bans[1])

	_, err = DecodeBans([]byte(`{"type":0}`))
	assert.Error(t, err)
}

func TestParsePresence(t *testing.T) {
	for _, p := range []Presence{PresenceOffline, PresenceOnline, PresenceAway} {
		got, ok := ParsePresence(p.String())
		assert.True(t, ok)
		assert.Equal(t, p, got)
	}
	_, ok := ParsePresence("busy")
	assert.False(t, ok)
}
