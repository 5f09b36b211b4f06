package db

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// LegacyMatchDocument is a match as exported from the document store. Two
// shapes exist in old data:
//   - user1Id/user2Id with blurPercentage and userNConsented flags
//   - participantIds with participantConsent/participantViewed maps
//
// Only the canonical Match leaves this file.
type LegacyMatchDocument struct {
	ID           string          `json:"id"`
	IsActive     *bool           `json:"isActive"`
	MessageCount int64           `json:"messageCount"`
	MatchDate    json.RawMessage `json:"matchDate"`
	ChannelID    string          `json:"channelId"`
	WarningShown bool            `json:"warningShown"`

	User1ID        string `json:"user1Id"`
	User2ID        string `json:"user2Id"`
	User1Consented bool   `json:"user1Consented"`
	User2Consented bool   `json:"user2Consented"`
	// BlurPercentage is derived from MessageCount and consent now; ignored.
	BlurPercentage *float64 `json:"blurPercentage"`

	ParticipantIDs     []string        `json:"participantIds"`
	ParticipantConsent map[string]bool `json:"participantConsent"`
	ParticipantViewed  map[string]bool `json:"participantViewed"`
}

// NormalizeMatchDocument converts either legacy shape into a canonical Match.
func NormalizeMatchDocument(doc LegacyMatchDocument) (Match, error) {
	if doc.ID == "" {
		return Match{}, fmt.Errorf("legacy match: missing id")
	}

	var first, second string
	consent := map[string]bool{}
	viewed := map[string]bool{}

	switch {
	case len(doc.ParticipantIDs) > 0:
		if len(doc.ParticipantIDs) != 2 {
			return Match{}, fmt.Errorf("legacy match %s: %d participants, want 2", doc.ID, len(doc.ParticipantIDs))
		}
		first, second = doc.ParticipantIDs[0], doc.ParticipantIDs[1]
		for k, v := range doc.ParticipantConsent {
			consent[k] = v
		}
		for k, v := range doc.ParticipantViewed {
			viewed[k] = v
		}
	case doc.User1ID != "" && doc.User2ID != "":
		first, second = doc.User1ID, doc.User2ID
		consent[first] = doc.User1Consented
		consent[second] = doc.User2Consented
	default:
		return Match{}, fmt.Errorf("legacy match %s: no participants", doc.ID)
	}
	if first == second {
		return Match{}, fmt.Errorf("legacy match %s: participants are the same user", doc.ID)
	}

	matchDate, err := parseLegacyTime(doc.MatchDate)
	if err != nil {
		return Match{}, fmt.Errorf("legacy match %s: %w", doc.ID, err)
	}

	a, b, key := PairKey(first, second)
	m := Match{
		ID:             doc.ID,
		UserAID:        a,
		UserBID:        b,
		IsActive:       doc.IsActive == nil || *doc.IsActive,
		MessageCount:   doc.MessageCount,
		MatchDate:      matchDate,
		ChannelID:      doc.ChannelID,
		UserAConsented: consent[a],
		UserBConsented: consent[b],
		UserAViewed:    viewed[a],
		UserBViewed:    viewed[b],
		WarningShown:   doc.WarningShown,
	}
	if m.IsActive {
		m.ActivePairKey = &key
	}
	// Old clients already posted the consent message once both flags were set.
	m.BothConsentedNotified = m.BothConsented()
	m.MatchedMessageSent = m.ChannelID != ""
	return m, nil
}

// parseLegacyTime accepts RFC3339 strings, unix millis, or
// {"_seconds": n} timestamp objects.
func parseLegacyTime(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad matchDate %q", s)
		}
		return t.UTC(), nil
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}

	var ts struct {
		Seconds int64 `json:"_seconds"`
	}
	if err := json.Unmarshal(raw, &ts); err == nil && ts.Seconds > 0 {
		return time.Unix(ts.Seconds, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad matchDate %s", string(raw))
}
