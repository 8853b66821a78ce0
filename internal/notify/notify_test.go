package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/retailsight/internal/tracking"
)

var testEvent = tracking.CrossingEvent{
	IdentityID: 7,
	Timestamp:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	Total:      3,
}

func TestHTTPSink(t *testing.T) {
	t.Run("posts the entry payload", func(t *testing.T) {
		var (
			mu      sync.Mutex
			got     EntryPayload
			ctype   string
			methods []string
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			defer mu.Unlock()
			methods = append(methods, r.Method)
			ctype = r.Header.Get("Content-Type")
			json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		sink := NewHTTPSink(srv.URL, nil)
		require.NoError(t, sink.Publish(context.Background(), testEvent))

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{http.MethodPost}, methods)
		assert.Equal(t, "application/json", ctype)
		assert.Equal(t, 3, got.CustomerID)
		assert.Equal(t, 7, got.IdentityID)
		assert.True(t, testEvent.Timestamp.Equal(got.Timestamp))
	})

	t.Run("customer_Id key is on the wire", func(t *testing.T) {
		var raw map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&raw)
		}))
		defer srv.Close()

		require.NoError(t, NewHTTPSink(srv.URL, nil).Publish(context.Background(), testEvent))
		assert.EqualValues(t, 3, raw["customer_Id"])
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusInternalServerError)
		}))
		defer srv.Close()

		err := NewHTTPSink(srv.URL, nil).Publish(context.Background(), testEvent)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("unreachable endpoint is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		assert.Error(t, NewHTTPSink(url, nil).Publish(context.Background(), testEvent))
	})
}

func TestMulti(t *testing.T) {
	var calls []string
	record := func(name string, err error) Sink {
		return SinkFunc(func(context.Context, tracking.CrossingEvent) error {
			calls = append(calls, name)
			return err
		})
	}

	first := errors.New("first failed")
	third := errors.New("third failed")
	m := Multi{record("a", first), nil, record("b", nil), record("c", third)}

	err := m.Publish(context.Background(), testEvent)
	assert.Equal(t, []string{"a", "b", "c"}, calls, "every sink should receive the event")
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, third)

	assert.NoError(t, Multi{}.Publish(context.Background(), testEvent))
	assert.NoError(t, Logger.Publish(context.Background(), testEvent))
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func TestExecSink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	t.Run("success", func(t *testing.T) {
		dir := t.TempDir()
		out := filepath.Join(dir, "stdin.json")
		path := writeScript(t, dir, "hook.sh", "cat > "+out+"\necho '{\"success\":true}'\n")

		hook, err := HookFromPath(path)
		require.NoError(t, err)
		require.NoError(t, NewExecSink(hook, 0).Publish(context.Background(), testEvent))

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		var req HookRequest
		require.NoError(t, json.Unmarshal(data, &req))
		assert.Equal(t, EventCustomerEntered, req.Event)
		assert.Equal(t, 3, req.CustomerID)
		assert.Equal(t, 7, req.IdentityID)
	})

	t.Run("reported failure", func(t *testing.T) {
		dir := t.TempDir()
		path := writeScript(t, dir, "hook.sh", "echo '{\"success\":false,\"error\":\"no display\"}'\n")
		hook, err := HookFromPath(path)
		require.NoError(t, err)

		err = NewExecSink(hook, 0).Publish(context.Background(), testEvent)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no display")
	})

	t.Run("invalid json", func(t *testing.T) {
		dir := t.TempDir()
		path := writeScript(t, dir, "hook.sh", "echo 'not json'\n")
		hook, err := HookFromPath(path)
		require.NoError(t, err)

		err = NewExecSink(hook, 0).Publish(context.Background(), testEvent)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse")
	})

	t.Run("non-zero exit", func(t *testing.T) {
		dir := t.TempDir()
		path := writeScript(t, dir, "hook.sh", "echo 'boom' >&2\nexit 3\n")
		hook, err := HookFromPath(path)
		require.NoError(t, err)

		err = NewExecSink(hook, 0).Publish(context.Background(), testEvent)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("timeout", func(t *testing.T) {
		dir := t.TempDir()
		path := writeScript(t, dir, "hook.sh", "sleep 5\necho '{\"success\":true}'\n")
		hook, err := HookFromPath(path)
		require.NoError(t, err)

		start := time.Now()
		err = NewExecSink(hook, 100*time.Millisecond).Publish(context.Background(), testEvent)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "killed"), "got %v", err)
		assert.Less(t, time.Since(start), 4*time.Second)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := HookFromPath(filepath.Join(t.TempDir(), "missing"))
		assert.Error(t, err)
	})
}

func TestDiscoverHooks(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		hooks, err := DiscoverHooks(filepath.Join(t.TempDir(), "none"))
		require.NoError(t, err)
		assert.Empty(t, hooks)
	})

	t.Run("loads valid manifests", func(t *testing.T) {
		dir := t.TempDir()
		write := func(name, manifest string) {
			require.NoError(t, os.MkdirAll(filepath.Join(dir, name), 0755))
			if manifest != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, name, "hook.json"), []byte(manifest), 0644))
			}
		}
		write("desktop", `{"name":"notify-desktop","executable":"notify-desktop","events":["customer_entered"]}`)
		write("all", `{"name":"audit","executable":"audit.sh"}`)
		write("other", `{"name":"exit-only","executable":"x","events":["customer_left"]}`)
		write("broken", `{not json`)
		write("empty", "")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.json"), []byte("{}"), 0644))

		hooks, err := DiscoverHooks(dir)
		require.NoError(t, err)
		require.Len(t, hooks, 2)
		assert.Equal(t, "audit", hooks[0].Manifest.Name)
		assert.Equal(t, "notify-desktop", hooks[1].Manifest.Name)
		assert.Equal(t, filepath.Join(dir, "desktop", "notify-desktop"), hooks[1].Executable)
	})
}
