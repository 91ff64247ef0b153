package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/invictusops/invictus/app/models"
	"github.com/invictusops/invictus/database/seeders"
	"github.com/invictusops/invictus/internal/server"
	"github.com/invictusops/invictus/pkg/auth"
	"github.com/invictusops/invictus/pkg/cache"
	"github.com/invictusops/invictus/pkg/docstore"
	"github.com/invictusops/invictus/pkg/storage"
)

type envelope struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func (c client) do(method, path string, body any) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()

	var env envelope
	_ = json.NewDecoder(res.Body).Decode(&env)
	return res.StatusCode, env
}

func startApp(t *testing.T) client {
	t.Helper()
	c, _ := startAppWithStore(t)
	return c
}

func startAppWithStore(t *testing.T) (client, docstore.Store) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hasher := auth.Bcrypt{Cost: bcrypt.MinCost}
	store := docstore.NewMemory()
	require.NoError(t, seeders.RunAll(ctx, seeders.Env{Store: store, Hasher: hasher, Password: "password123"}))

	app, err := server.New(server.Deps{
		Store:  store,
		Cache:  cache.NewMemory(),
		Disk:   storage.NewLocal(t.TempDir(), "/files"),
		Hasher: hasher,
	})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	require.NoError(t, app.Live.Start(ctx))
	t.Cleanup(app.Live.Stop)
	require.Eventually(t, app.Live.Ready, 2*time.Second, 10*time.Millisecond)

	srv := httptest.NewServer(app.Kernel.Handler())
	t.Cleanup(srv.Close)

	return newClient(t, srv.URL), store
}

// newClient is a separate browser: its own cookie jar, so its own session.
func newClient(t *testing.T, base string) client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return client{t: t, base: base, http: &http.Client{Jar: jar}}
}

func TestHealthz(t *testing.T) {
	c := startApp(t)
	code, _ := c.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestFirstLoginFlow(t *testing.T) {
	c := startApp(t)

	code, _ := c.do(http.MethodGet, "/api/views/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := c.do(http.MethodGet, "/api/session/profiles", nil)
	require.Equal(t, http.StatusOK, code)
	var profiles []struct {
		ID             string `json:"id"`
		HasSetPassword bool   `json:"hasSetPassword"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profiles))
	require.Len(t, profiles, 7)
	assert.False(t, profiles[0].HasSetPassword)

	var status struct {
		State string `json:"state"`
		Token string `json:"token"`
	}

	code, env = c.do(http.MethodPost, "/api/session/select", map[string]string{"userId": profiles[0].ID})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "PasswordEntry", status.State)

	code, _ = c.do(http.MethodPost, "/api/session/password", map[string]string{"password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = c.do(http.MethodPost, "/api/session/password", map[string]string{"password": "password123"})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "FirstTimePasswordSetup", status.State)

	code, _ = c.do(http.MethodPost, "/api/session/setup", map[string]string{"password": "abc", "confirm": "abc"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, env = c.do(http.MethodPost, "/api/session/setup", map[string]string{"password": "tulip42", "confirm": "tulip42"})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "Authenticated", status.State)
	assert.NotEmpty(t, status.Token)

	code, _ = c.do(http.MethodGet, "/api/views/dashboard", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = c.do(http.MethodPost, "/api/session/logout", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = c.do(http.MethodGet, "/api/views/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestInventoryRoundTrip(t *testing.T) {
	c := startApp(t)
	login(t, c)

	code, env := c.do(http.MethodPost, "/api/inventory", map[string]any{
		"name": "USB Hub", "type": "Electronics", "quantity": 4, "supplier": "TechSupply",
	})
	require.Equal(t, http.StatusCreated, code, env.Errors)

	require.Eventually(t, func() bool {
		code, env := c.do(http.MethodGet, "/api/views/inventory?search=hub", nil)
		if code != http.StatusOK {
			return false
		}
		var items []map[string]any
		_ = json.Unmarshal(env.Data, &items)
		return len(items) == 1
	}, 2*time.Second, 20*time.Millisecond)

	code, env = c.do(http.MethodPost, "/api/inventory", map[string]any{"quantity": -3})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "name")
}

func TestLiveStreamDeliversTaskAssignmentAsToast(t *testing.T) {
	alice, store := startAppWithStore(t)
	bob := newClient(t, alice.base)
	aliceID := loginAs(t, alice, 0)
	loginAs(t, bob, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, alice.base+"/api/live", nil)
	require.NoError(t, err)
	res, err := alice.http.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	toasts := make(chan string, 8)
	go func() {
		defer close(toasts)
		sc := bufio.NewScanner(res.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		event := ""
		for sc.Scan() {
			line := sc.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: ") && event == "toast":
				toasts <- strings.TrimPrefix(line, "data: ")
			case line == "":
				event = ""
			}
		}
	}()

	code, env := bob.do(http.MethodPost, "/api/tasks", map[string]any{
		"description": "Count stock in aisle 3",
		"assignedTo":  aliceID,
	})
	require.Equal(t, http.StatusCreated, code, env.Errors)

	select {
	case data := <-toasts:
		var msgs []string
		require.NoError(t, json.Unmarshal([]byte(data), &msgs))
		require.Len(t, msgs, 1)
		assert.Contains(t, msgs[0], "assigned you a new task")
		assert.Contains(t, msgs[0], "Count stock in aisle 3")
	case <-time.After(3 * time.Second):
		t.Fatal("no toast received")
	}

	_, err = store.Collection(models.CollectionNotifications).Get(context.Background(), aliceID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	select {
	case data, ok := <-toasts:
		if ok {
			t.Fatalf("unexpected second toast: %s", data)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func login(t *testing.T, c client) {
	t.Helper()
	loginAs(t, c, 0)
}

// loginAs signs c in as the i-th seeded profile and returns its id.
func loginAs(t *testing.T, c client, i int) string {
	t.Helper()
	_, env := c.do(http.MethodGet, "/api/session/profiles", nil)
	var profiles []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profiles))
	require.Greater(t, len(profiles), i)
	id := profiles[i].ID

	c.do(http.MethodPost, "/api/session/select", map[string]string{"userId": id})
	c.do(http.MethodPost, "/api/session/password", map[string]string{"password": "password123"})
	code, _ := c.do(http.MethodPost, "/api/session/setup", map[string]string{"password": "tulip42", "confirm": "tulip42"})
	require.Equal(t, http.StatusOK, code)
	return id
}
