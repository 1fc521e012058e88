// services/services_test.go
package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ------------------- settings store -------------------

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewFileStore(path)

	_, ok := store.Get("liftType")
	assert.False(t, ok, "fresh store is empty")

	require.NoError(t, store.Set("liftType", "bench"))
	require.NoError(t, store.Set("requireReasons", "true"))

	// a second store reading the same file sees the persisted values
	reopened := NewFileStore(path)
	v, ok := reopened.Get("liftType")
	assert.True(t, ok)
	assert.Equal(t, "bench", v)
	v, ok = reopened.Get("requireReasons")
	assert.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestFileStore_DeleteAndCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewFileStore(path)
	require.NoError(t, store.Set("reconnectToken", "tok"))
	require.NoError(t, store.Delete("reconnectToken"))

	_, ok := NewFileStore(path).Get("reconnectToken")
	assert.False(t, ok)

	// a corrupt file degrades to an empty store, not an error
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	_, ok = NewFileStore(path).Get("anything")
	assert.False(t, ok)
}

// ------------------- session API -------------------

func TestSessionAPI_CreateSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/sessions", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Friday Night Meet", body["name"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"session_code":"AB12CD34"}`))
	}))
	defer server.Close()

	api := &SessionAPI{BaseURL: server.URL}
	code, err := api.CreateSession(context.Background(), "Friday Night Meet")
	require.NoError(t, err)
	assert.Equal(t, "AB12CD34", code)
}

func TestSessionAPI_CreateSessionErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	api := &SessionAPI{BaseURL: server.URL}
	_, err := api.CreateSession(context.Background(), "x")
	assert.Error(t, err)

	api = &SessionAPI{BaseURL: "http://127.0.0.1:1"}
	_, err = api.CreateSession(context.Background(), "x")
	assert.Error(t, err)
}

// ------------------- QR invites -------------------

func TestInviteURLEncodesSessionCode(t *testing.T) {
	t.Setenv("APPLICATION_URL", "https://verdict.example.com")
	assert.Equal(t, "https://verdict.example.com/?session=AB12CD34", InviteURL("AB12CD34"))
}

func TestGenerateInviteQR(t *testing.T) {
	png, err := GenerateInviteQR("AB12CD34", 200)
	require.NoError(t, err)
	assert.NotEmpty(t, png)

	_, err = GenerateInviteQR("", 200)
	assert.Error(t, err, "no QR without a session code")
}

// ------------------- contact form -------------------

func TestContactService_Submit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "key-123", body["access_key"])
		assert.Equal(t, "sam@example.com", body["email"])
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	svc := &ContactService{Endpoint: server.URL, AccessKey: "key-123"}
	err := svc.Submit(context.Background(), "Sam", "sam@example.com", "hello")
	assert.NoError(t, err)
}

func TestContactService_RelayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer server.Close()

	svc := &ContactService{Endpoint: server.URL, AccessKey: "key-123"}
	err := svc.Submit(context.Background(), "Sam", "sam@example.com", "hello")
	assert.Error(t, err)
}
