package dhtclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roselite-project/roselite/internal/logger"
)

func testClient() *Client {
	return New(DefaultConfig(), logger.NewLogger(discard{}, logger.ErrorLevel))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestPutGetRoundTripViaFallback(t *testing.T) {
	c := testClient()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "app/foo", []byte("hello")))

	v, err := c.Get(ctx, "app/foo")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)
}

func TestGetMissingKeyReturnsNilNoError(t *testing.T) {
	c := testClient()
	v, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDeleteRemovesKey(t *testing.T) {
	c := testClient()
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "k", []byte("v")))
	require.NoError(t, c.Delete(ctx, "k"))

	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestListKeysMatchesSubstring(t *testing.T) {
	c := testClient()
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "app/1", []byte("a")))
	require.NoError(t, c.Put(ctx, "app/2", []byte("b")))
	require.NoError(t, c.Put(ctx, "slug/1", []byte("c")))

	keys, err := c.ListKeys(ctx, "app/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"app/1", "app/2"}, keys)
}

func TestInitialStateIsDetached(t *testing.T) {
	c := testClient()
	assert.Equal(t, Detached, c.AttachmentState())
	assert.False(t, c.IsConnected())
}

func TestHealthCheckFailsBeforeConnect(t *testing.T) {
	c := testClient()
	assert.Error(t, c.HealthCheck(context.Background()))
}

func TestNetworkStateReportsFallbackModeBeforeConnect(t *testing.T) {
	c := testClient()
	info := c.NetworkState()
	assert.Equal(t, "Fallback Storage", info.Mode)
}

func TestFromPeerCountBands(t *testing.T) {
	cases := []struct {
		n        int
		expected AttachmentState
	}{
		{0, Attaching},
		{1, AttachedWeak},
		{4, AttachedGood},
		{8, AttachedStrong},
		{16, FullyAttached},
		{32, OverAttached},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, fromPeerCount(tc.n))
	}
}

func TestDhtKeyNamespacesUnderRoselite(t *testing.T) {
	assert.Equal(t, "/roselite/app/foo", dhtKey("app/foo"))
}

func TestCreateRecordSetGetSubkeyRoundTrip(t *testing.T) {
	c := testClient()
	ctx := context.Background()

	rk, err := c.CreateRecord(ctx, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, rk)

	require.NoError(t, c.SetSubkey(ctx, rk, 0, []byte("chunk0")))
	require.NoError(t, c.SetSubkey(ctx, rk, 1, []byte("chunk1")))

	v, err := c.GetSubkey(ctx, rk, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("chunk0"), v)

	v, err = c.GetSubkey(ctx, rk, 2)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestCreateRecordRejectsZeroColumns(t *testing.T) {
	c := testClient()
	_, err := c.CreateRecord(context.Background(), 0)
	assert.Error(t, err)
}

func TestInspectRecordCountsContiguousSubkeys(t *testing.T) {
	c := testClient()
	ctx := context.Background()
	rk, err := c.CreateRecord(ctx, 5)
	require.NoError(t, err)

	require.NoError(t, c.SetSubkey(ctx, rk, 0, []byte("a")))
	require.NoError(t, c.SetSubkey(ctx, rk, 1, []byte("b")))
	require.NoError(t, c.SetSubkey(ctx, rk, 2, []byte("c")))

	n, err := c.InspectRecord(ctx, rk)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDeleteRecordClearsAllSubkeys(t *testing.T) {
	c := testClient()
	ctx := context.Background()
	rk, err := c.CreateRecord(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, c.SetSubkey(ctx, rk, 0, []byte("a")))
	require.NoError(t, c.SetSubkey(ctx, rk, 1, []byte("b")))

	require.NoError(t, c.DeleteRecord(ctx, rk))

	n, err := c.InspectRecord(ctx, rk)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRecordValidatorSelectsLongestValue(t *testing.T) {
	v := recordValidator{}
	idx, err := v.Select("k", [][]byte{[]byte("a"), []byte("abc"), []byte("ab")})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}
