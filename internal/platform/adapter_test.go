package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faeterjconnect/connect/internal/auth"
	"github.com/faeterjconnect/connect/internal/backend"
	"github.com/faeterjconnect/connect/internal/bus"
	"github.com/faeterjconnect/connect/internal/chat"
	"github.com/faeterjconnect/connect/internal/status"
	"github.com/faeterjconnect/connect/internal/transport"
)

const (
	selfID  = "3f1c2a9e-8b7d-4c6e-9a5b-1d2e3f4a5b6c"
	otherID = "7a6b5c4d-3e2f-4a1b-8c9d-0e1f2a3b4c5d"
)

type fakeBroker struct {
	mu          sync.Mutex
	connected   bool
	connects    int
	disconnects int
}

func (f *fakeBroker) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeBroker) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	f.connects++
	return nil
}

func (f *fakeBroker) Subscribe(string, transport.Handler) error { return nil }
func (f *fakeBroker) Unsubscribe()                              {}
func (f *fakeBroker) Publish(string, map[string]string, []byte) error {
	return nil
}

func (f *fakeBroker) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
}

type memStore struct {
	mu    sync.Mutex
	creds *auth.Credentials
}

func (m *memStore) LoadCredentials() (*auth.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds, nil
}

func (m *memStore) SaveCredentials(c auth.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = &c
	return nil
}

func (m *memStore) ClearCredentials() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
	return nil
}

type fixture struct {
	adapter *Adapter
	broker  *fakeBroker
	machine *status.Machine
	auth    *auth.Session
	bus     *bus.Bus
}

func backendRouter(r *gin.Engine) {
	r.POST("/api/user/login", func(c *gin.Context) {
		var req backend.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Password != "pw" {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": selfID, "username": "ana", "email": req.Email, "roleEnum": "ALUNO", "token": "tok"})
	})
	r.GET("/api/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": selfID, "username": "ana.clara", "email": "ana@example.com"})
	})
	r.GET("/api/chat/conversations", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{
			{"id": "c1", "isGroup": false, "participants": []gin.H{{"userId": selfID, "username": "ana"}, {"userId": otherID, "username": "bruno"}}},
			{"id": "g1", "isGroup": true, "title": "Turma"},
		})
	})
	r.POST("/api/chat/conversations/:other", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": "c-" + c.Param("other"), "isGroup": false})
	})
	r.GET("/api/posts", func(c *gin.Context) {
		c.Status(http.StatusUnauthorized)
	})
}

func newFixture(t *testing.T, creds *auth.Credentials) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	backendRouter(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	b := bus.New()
	sess := auth.NewSession(&memStore{creds: creds}, b, nil)
	api := backend.New(ts.URL, 5*time.Second, sess, nil)
	broker := &fakeBroker{}
	engine := chat.NewEngine(chat.Options{
		Transport: broker,
		History:   HistoryFunc(api),
		Identity:  IdentityFunc(sess),
		Bus:       b,
	})
	machine := status.NewMachine(b)
	a := NewAdapter(api, sess, engine, broker, machine, nil, b, nil)
	t.Cleanup(a.Stop)
	return &fixture{adapter: a, broker: broker, machine: machine, auth: sess, bus: b}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartWithoutCredentials(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.adapter.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.machine.Current() != status.LoggedOut {
		t.Errorf("state = %s, want LOGGED_OUT", f.machine.Current())
	}
	if f.broker.Connected() {
		t.Error("broker connected without credentials")
	}
}

func TestStartRestoresAndConnects(t *testing.T) {
	f := newFixture(t, &auth.Credentials{User: auth.User{UserID: selfID, Username: "ana"}, Token: "tok"})
	if err := f.adapter.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.machine.Current() != status.Connecting || !f.broker.Connected() {
		t.Errorf("state = %s, connected = %v", f.machine.Current(), f.broker.Connected())
	}
	eventually(t, "profile repair", func() bool {
		u, _ := f.auth.User()
		return u.Username == "ana.clara"
	})
}

func TestLoginConnectsAndLoadsConversations(t *testing.T) {
	f := newFixture(t, nil)

	u, err := f.adapter.Login(context.Background(), "ana@example.com", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if u.UserID != selfID || !f.adapter.IsLoggedIn() {
		t.Fatalf("user = %+v", u)
	}
	if !f.broker.Connected() {
		t.Error("broker not connected after login")
	}
	eventually(t, "conversations", func() bool {
		return len(f.adapter.Engine().Store().List()) == 2
	})
	c, _ := f.adapter.Engine().Store().Get("c1")
	if got := c.DisplayName(selfID); got != "bruno" {
		t.Errorf("display name = %q, want bruno", got)
	}
}

func TestLoginRejected(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.adapter.Login(context.Background(), "ana@example.com", "wrong"); err == nil {
		t.Fatal("expected login error")
	}
	if f.adapter.IsLoggedIn() || f.broker.Connected() {
		t.Error("rejected login must not install a session")
	}
}

func TestUnauthorizedForcesLogout(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.adapter.Login(context.Background(), "ana@example.com", "pw"); err != nil {
		t.Fatal(err)
	}
	eventually(t, "conversations", func() bool {
		return len(f.adapter.Engine().Store().List()) == 2
	})
	loggedOut, unsub := f.bus.Subscribe(bus.KindLoggedOut, 1)
	defer unsub()

	if _, err := f.adapter.API().Posts(context.Background(), backend.PostQuery{}); err == nil {
		t.Fatal("expected 401")
	}

	select {
	case <-loggedOut:
	case <-time.After(2 * time.Second):
		t.Fatal("no logout after 401")
	}
	if f.adapter.IsLoggedIn() {
		t.Error("still authenticated after 401")
	}
	if f.broker.Connected() {
		t.Error("broker still connected after forced logout")
	}
	if f.machine.Current() != status.LoggedOut {
		t.Errorf("state = %s, want LOGGED_OUT", f.machine.Current())
	}
	if len(f.adapter.Engine().Store().List()) != 0 {
		t.Error("conversation list survived logout")
	}
}

func TestOpenConversationPrependsOnce(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.adapter.Login(context.Background(), "ana@example.com", "pw"); err != nil {
		t.Fatal(err)
	}
	eventually(t, "conversations", func() bool {
		return len(f.adapter.Engine().Store().List()) == 2
	})

	c, created, err := f.adapter.OpenConversation(context.Background(), otherID)
	if err != nil {
		t.Fatal(err)
	}
	if !created || f.adapter.Engine().Store().List()[0].ID != c.ID {
		t.Errorf("created = %v, list = %+v", created, f.adapter.Engine().Store().List())
	}
	if _, created, _ = f.adapter.OpenConversation(context.Background(), otherID); created {
		t.Error("second open should not prepend again")
	}
}
