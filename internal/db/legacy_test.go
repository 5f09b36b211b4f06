package db

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeDoc(t *testing.T, raw string) LegacyMatchDocument {
	t.Helper()
	var doc LegacyMatchDocument
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func TestNormalizeUserPairShape(t *testing.T) {
	doc := decodeDoc(t, `{
		"id": "m1",
		"user1Id": "zed",
		"user2Id": "amy",
		"isActive": true,
		"messageCount": 12,
		"blurPercentage": 60,
		"user1Consented": true,
		"matchDate": "2024-03-01T10:00:00Z"
	}`)

	m, err := NormalizeMatchDocument(doc)
	require.NoError(t, err)

	assert.Equal(t, "amy", m.UserAID)
	assert.Equal(t, "zed", m.UserBID)
	assert.True(t, m.UserBConsented, "zed's consent follows zed into slot B")
	assert.False(t, m.UserAConsented)
	assert.Equal(t, int64(12), m.MessageCount)
	require.NotNil(t, m.ActivePairKey)
	assert.Equal(t, "amy|zed", *m.ActivePairKey)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), m.MatchDate)
}

func TestNormalizeParticipantShape(t *testing.T) {
	doc := decodeDoc(t, `{
		"id": "m2",
		"participantIds": ["u1", "u2"],
		"participantConsent": {"u1": true, "u2": true},
		"participantViewed": {"u2": true},
		"isActive": false,
		"channelId": "match-abc",
		"matchDate": {"_seconds": 1700000000}
	}`)

	m, err := NormalizeMatchDocument(doc)
	require.NoError(t, err)

	assert.False(t, m.IsActive)
	assert.Nil(t, m.ActivePairKey, "inactive matches do not hold the pair slot")
	assert.True(t, m.BothConsented())
	assert.True(t, m.BothConsentedNotified)
	assert.True(t, m.MatchedMessageSent)
	assert.True(t, m.UserBViewed)
	assert.Equal(t, int64(1700000000), m.MatchDate.Unix())
}

func TestNormalizeRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"missing id":        `{"user1Id":"a","user2Id":"b"}`,
		"no participants":   `{"id":"x"}`,
		"group match":       `{"id":"x","participantIds":["a","b","c"]}`,
		"self match":        `{"id":"x","user1Id":"a","user2Id":"a"}`,
		"unparseable date":  `{"id":"x","user1Id":"a","user2Id":"b","matchDate":"yesterday"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NormalizeMatchDocument(decodeDoc(t, raw))
			assert.Error(t, err)
		})
	}
}
