// client/store_mock_test.go
package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"iron-verdict/models"
)

var _ KV = (*MockKV)(nil)

// MockKV is a testify mock over the settings store seam.
type MockKV struct {
	mock.Mock
}

func (m *MockKV) Get(key string) (string, bool) {
	args := m.Called(key)
	return args.String(0), args.Bool(1)
}

func (m *MockKV) Set(key, value string) error {
	args := m.Called(key, value)
	return args.Error(0)
}

func TestSessionClient_StoreInteractions(t *testing.T) {
	store := new(MockKV)
	// startup reads every persisted key once
	store.On("Get", keyShowExplanations).Return("true", true).Once()
	store.On("Get", keyLiftType).Return("bench", true).Once()
	store.On("Get", keyRequireReasons).Return("", false).Once()
	store.On("Get", keyReconnectToken).Return("tok-old", true).Once()
	// a fresh token from join_success is persisted
	store.On("Set", keyReconnectToken, "tok-new").Return(nil).Once()

	conn := newFakeConn()
	c, err := NewSessionClient(Config{
		ServerURL:   "ws://test/ws",
		SessionCode: "ABCD1234",
		Role:        models.RoleLeftJudge,
		Store:       store,
	})
	require.NoError(t, err)
	c.Transport().Dial = func(url string) (WSConn, error) { return conn, nil }

	// stored settings seed the session before any server frame
	snap := c.StateSnapshot()
	require.True(t, snap.Session.Settings.ShowExplanations)
	require.Equal(t, "bench", snap.Session.Settings.LiftType)
	require.Equal(t, "tok-old", snap.ReconnectToken)

	c.Connect()
	defer c.Disconnect()

	conn.inbound <- []byte(`{"type":"join_success","is_head":false,` +
		`"session_state":{"name":"meet","settings":{"lift_type":"bench"},"judges":{}},` +
		`"reconnect_token":"tok-new"}`)

	require.Eventually(t, func() bool {
		return c.StateSnapshot().ReconnectToken == "tok-new"
	}, 2*time.Second, 5*time.Millisecond)

	store.AssertExpectations(t)
}
