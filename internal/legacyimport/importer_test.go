package legacyimport_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/campus-match/internal/legacyimport"
	"github.com/oggyb/campus-match/internal/logger"
	"github.com/oggyb/campus-match/internal/repository"
	"github.com/oggyb/campus-match/internal/testutil"
)

const export = `[
	{"id": "m1", "user1Id": "u2", "user2Id": "u1", "isActive": true, "messageCount": 7, "blurPercentage": 70, "matchDate": "2024-03-01T10:00:00Z"},
	{"id": "m1", "user1Id": "u2", "user2Id": "u1", "isActive": true, "matchDate": "2024-03-01T10:00:00Z"},
	{"id": "m2", "participantIds": ["u3", "u4"], "participantConsent": {"u3": true}, "isActive": false, "matchDate": 1700000000000},
	{"id": "m3", "participantIds": ["u1"]},
	{"id": "m4", "user1Id": "u1", "user2Id": "u2", "isActive": true, "matchDate": "2024-04-01T10:00:00Z"},
	{"id": "m5", "user1Id": "u1", "user2Id": "ghost", "matchDate": "2024-04-01T10:00:00Z"}
]`

func TestImportLegacyExport(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewSeededDB(t)
	imp := legacyimport.New(gdb, logger.Discard())

	res, err := imp.Import(ctx, strings.NewReader(export))
	require.NoError(t, err)
	assert.Equal(t, legacyimport.Result{Imported: 2, Existing: 1, Skipped: 3}, res)

	m, err := repository.NewMatchRepository(gdb).Get(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, m.IsActive)
	assert.Equal(t, int64(7), m.MessageCount)

	u1, err := repository.NewUserRepository(gdb).Get(ctx, "u1")
	require.NoError(t, err)
	assert.Contains(t, u1.CurrentMatches, "m1")
	assert.False(t, u1.IsAvailable)

	// inactive matches do not touch membership
	u3, err := repository.NewUserRepository(gdb).Get(ctx, "u3")
	require.NoError(t, err)
	assert.Empty(t, u3.CurrentMatches)
	assert.True(t, u3.IsAvailable)

	// replaying is a no-op
	res, err = imp.Import(ctx, strings.NewReader(export))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 3, res.Existing)
}

func TestImportRejectsNonArray(t *testing.T) {
	imp := legacyimport.New(testutil.NewTestDB(t), logger.Discard())

	_, err := imp.Import(context.Background(), strings.NewReader(`{"id": "m1"}`))
	assert.Error(t, err)

	_, err = imp.Import(context.Background(), strings.NewReader(`[{"id": 5}]`))
	assert.Error(t, err)
}

func TestImportKeepsOneActiveMatchPerRegularUser(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewSeededDB(t)
	imp := legacyimport.New(gdb, logger.Discard())

	res, err := imp.Import(ctx, strings.NewReader(`[
		{"id": "p1", "user1Id": "u1", "user2Id": "u2", "isActive": true, "matchDate": "2024-03-01T10:00:00Z"},
		{"id": "p2", "user1Id": "u1", "user2Id": "u3", "isActive": true, "matchDate": "2024-03-02T10:00:00Z"},
		{"id": "p3", "user1Id": "u4", "user2Id": "u3", "isActive": true, "matchDate": "2024-03-03T10:00:00Z"},
		{"id": "p4", "user1Id": "u4", "user2Id": "u2", "isActive": true, "matchDate": "2024-03-04T10:00:00Z"},
		{"id": "p5", "user1Id": "u1", "user2Id": "u3", "isActive": false, "matchDate": "2024-03-05T10:00:00Z"}
	]`))
	require.NoError(t, err)
	assert.Equal(t, legacyimport.Result{Imported: 3, Skipped: 2}, res)

	users := repository.NewUserRepository(gdb)
	u1, err := users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, []string(u1.CurrentMatches))

	// u4 is premium and may hold several active matches
	u4, err := users.Get(ctx, "u4")
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, []string(u4.CurrentMatches))
	assert.True(t, u4.IsAvailable)

	_, err = repository.NewMatchRepository(gdb).Get(ctx, "p2")
	assert.Error(t, err)
}
