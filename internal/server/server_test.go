package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"essaybid/internal/config"
	"essaybid/internal/db"
	"essaybid/internal/domain"
	"essaybid/internal/engine"
	"essaybid/internal/migrate"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	e := engine.New(conn, cfg)
	if err := e.Repo.UpsertSettings(context.Background(), cfg); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	handler, err := New(Config{
		Engine: e,
		Auth: AuthConfig{
			JWTSecret:              testJWTSecret,
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("decode error envelope %q: %v", data, err)
	}
	return envelope.Error.Code
}

// seedAdmin creates an admin account outside the HTTP surface, the way the
// serve command does it at startup.
func seedAdmin(t *testing.T, e engine.Engine) domain.Actor {
	t.Helper()
	u, err := e.CreateUser(context.Background(), domain.Actor{ID: "bootstrap", Role: domain.RoleAdmin}, engine.UserCreateOptions{
		Email: "admin@example.com", Name: "Admin", Role: domain.RoleAdmin, Password: "admin-pass-1",
	})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return domain.Actor{ID: u.ID, Role: domain.RoleAdmin}
}

func mintJWT(t *testing.T, actor domain.Actor) string {
	t.Helper()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: string(actor.Role),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return signed
}

func TestHealthIsPublic(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	resp, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, data)
	}
}

func TestUnauthenticatedIsRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	resp, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/requests", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, body %s", resp.StatusCode, data)
	}
	if code := errorCode(t, data); code != "unauthorized" {
		t.Fatalf("code = %s", code)
	}

	// garbage bearer token
	resp, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/requests", nil, map[string]string{
		"Authorization": "Bearer not-a-jwt",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, body %s", resp.StatusCode, data)
	}
	if code := errorCode(t, data); code != "invalid_credentials" {
		t.Fatalf("code = %s", code)
	}
}

func TestRegisterLoginSessionFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	c := srv.Client()

	resp, data := doJSON(t, c, http.MethodPost, srv.URL+"/v1/auth/register", RegisterRequest{
		Email: "alice@example.com", Name: "Alice", Role: "student", Password: "alice-pass-1",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", resp.StatusCode, data)
	}

	// duplicate email
	resp, data = doJSON(t, c, http.MethodPost, srv.URL+"/v1/auth/register", RegisterRequest{
		Email: "alice@example.com", Name: "Alice", Role: "student", Password: "alice-pass-1",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d, body %s", resp.StatusCode, data)
	}
	if code := errorCode(t, data); code != "conflict" {
		t.Fatalf("code = %s", code)
	}

	resp, data = doJSON(t, c, http.MethodPost, srv.URL+"/v1/auth/login", LoginRequest{
		Email: "alice@example.com", Password: "wrong-pass-1",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, body %s", resp.StatusCode, data)
	}

	resp, data = doJSON(t, c, http.MethodPost, srv.URL+"/v1/auth/login", LoginRequest{
		Email: "alice@example.com", Password: "alice-pass-1",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, body %s", resp.StatusCode, data)
	}
	var login LoginResponse
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("login body %s: %v", data, err)
	}

	session := map[string]string{"X-Session-Token": login.Token}
	resp, data = doJSON(t, c, http.MethodGet, srv.URL+"/v1/auth/me", nil, session)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d, body %s", resp.StatusCode, data)
	}
	var me domain.User
	if err := json.Unmarshal(data, &me); err != nil || me.Email != "alice@example.com" {
		t.Fatalf("me body %s: %v", data, err)
	}

	resp, data = doJSON(t, c, http.MethodPost, srv.URL+"/v1/auth/logout", nil, session)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d, body %s", resp.StatusCode, data)
	}
	resp, _ = doJSON(t, c, http.MethodGet, srv.URL+"/v1/auth/me", nil, session)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout status = %d", resp.StatusCode)
	}
}

func TestBiddingOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	c := srv.Client()
	admin := seedAdmin(t, srv.Engine)
	adminHeaders := map[string]string{"Authorization": "Bearer " + mintJWT(t, admin)}

	register := func(email, name, role, password string) map[string]string {
		t.Helper()
		resp, data := doJSON(t, c, http.MethodPost, srv.URL+"/v1/auth/register", RegisterRequest{
			Email: email, Name: name, Role: role, Password: password,
		}, nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("register %s status = %d, body %s", email, resp.StatusCode, data)
		}
		resp, data = doJSON(t, c, http.MethodPost, srv.URL+"/v1/auth/login", LoginRequest{Email: email, Password: password}, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("login %s status = %d, body %s", email, resp.StatusCode, data)
		}
		var login LoginResponse
		if err := json.Unmarshal(data, &login); err != nil {
			t.Fatalf("login body %s: %v", data, err)
		}
		return map[string]string{"X-Session-Token": login.Token}
	}
	student := register("student@example.com", "Student", "student", "student-pass")
	supervisor := register("super@example.com", "Supervisor", "supervisor", "super-pass-1")

	resp, data := doJSON(t, c, http.MethodPost, srv.URL+"/v1/requests", CreateRequestRequest{
		Title: "Essay on caching", DueDate: "2026-10-01T00:00:00Z", WordCount: 1500,
		AssignmentType: "essay", FieldOfStudy: "Computer Science",
	}, student)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create request status = %d, body %s", resp.StatusCode, data)
	}
	var req domain.EssayRequest
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("request body %s: %v", data, err)
	}

	// a bad due date is the command's business, not the schema's
	resp, data = doJSON(t, c, http.MethodPost, srv.URL+"/v1/requests", CreateRequestRequest{
		Title: "x", DueDate: "2026-10-01T00:00:00Z", WordCount: 1500,
		AssignmentType: "essay", FieldOfStudy: "Alchemy",
	}, student)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("bad field status = %d, body %s", resp.StatusCode, data)
	}
	if code := errorCode(t, data); code != "validation_failed" {
		t.Fatalf("code = %s", code)
	}

	// students may not bid
	resp, data = doJSON(t, c, http.MethodPost, srv.URL+"/v1/bids", CreateBidRequest{RequestID: req.ID, Price: 50}, student)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("student bid status = %d, body %s", resp.StatusCode, data)
	}
	if code := errorCode(t, data); code != "forbidden" {
		t.Fatalf("code = %s", code)
	}

	resp, data = doJSON(t, c, http.MethodPost, srv.URL+"/v1/bids", CreateBidRequest{RequestID: req.ID, Price: 120, Notes: "two weeks"}, supervisor)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("bid status = %d, body %s", resp.StatusCode, data)
	}
	var bid domain.Bid
	if err := json.Unmarshal(data, &bid); err != nil {
		t.Fatalf("bid body %s: %v", data, err)
	}

	resp, data = doJSON(t, c, http.MethodPatch, srv.URL+"/v1/bids/"+bid.ID+"/status", SetBidStatusRequest{Status: "accepted"}, adminHeaders)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept status = %d, body %s", resp.StatusCode, data)
	}
	resp, data = doJSON(t, c, http.MethodGet, srv.URL+"/v1/requests/"+req.ID, nil, student)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get request status = %d, body %s", resp.StatusCode, data)
	}
	var got domain.EssayRequest
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("request body %s: %v", data, err)
	}
	if got.Status != domain.StatusAccepted || got.AssignedSupervisor == nil {
		t.Fatalf("request after accept = %+v", got)
	}

	// accepting twice is a state conflict
	resp, data = doJSON(t, c, http.MethodPatch, srv.URL+"/v1/bids/"+bid.ID+"/status", SetBidStatusRequest{Status: "rejected"}, adminHeaders)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("re-decide status = %d, body %s", resp.StatusCode, data)
	}
	if code := errorCode(t, data); code != "invalid_state" {
		t.Fatalf("code = %s", code)
	}

	// chat thread now open between the two parties
	resp, data = doJSON(t, c, http.MethodPost, srv.URL+"/v1/messages", SendMessageRequest{RequestID: req.ID, Body: "hello"}, student)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send status = %d, body %s", resp.StatusCode, data)
	}
	var msg domain.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("message body %s: %v", data, err)
	}
	if msg.Approved {
		t.Fatal("message approved despite moderation")
	}
	resp, data = doJSON(t, c, http.MethodPost, srv.URL+"/v1/messages/"+msg.ID+"/approve", nil, adminHeaders)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d, body %s", resp.StatusCode, data)
	}

	// supervisor has notifications by now
	resp, data = doJSON(t, c, http.MethodGet, srv.URL+"/v1/notifications/unread-count", nil, supervisor)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unread-count status = %d, body %s", resp.StatusCode, data)
	}
	var count map[string]int
	if err := json.Unmarshal(data, &count); err != nil || count["unread"] == 0 {
		t.Fatalf("unread-count body %s: %v", data, err)
	}

	resp, data = doJSON(t, c, http.MethodGet, srv.URL+"/v1/requests/no-such-id", nil, adminHeaders)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing request status = %d, body %s", resp.StatusCode, data)
	}
	if code := errorCode(t, data); code != "not_found" {
		t.Fatalf("code = %s", code)
	}
}

func TestLegacyActorHeader(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	c := srv.Client()
	admin := seedAdmin(t, srv.Engine)

	headers := map[string]string{"X-Actor-Id": admin.ID, "X-Actor-Role": "admin"}
	resp, data := doJSON(t, c, http.MethodGet, srv.URL+"/v1/users", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("users status = %d, body %s", resp.StatusCode, data)
	}

	// unknown role is rejected
	resp, _ = doJSON(t, c, http.MethodGet, srv.URL+"/v1/users", nil, map[string]string{
		"X-Actor-Id": admin.ID, "X-Actor-Role": "superuser",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad role status = %d", resp.StatusCode)
	}
}

func TestLegacyActorHeaderDisabledByDefault(t *testing.T) {
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{Engine: e, Auth: AuthConfig{JWTSecret: testJWTSecret}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	defer func() {
		srv.Shutdown(context.Background())
		ln.Close()
	}()

	resp, _ := doJSON(t, &http.Client{}, http.MethodGet, "http://"+ln.Addr().String()+"/v1/requests", nil, map[string]string{
		"X-Actor-Id": "anyone", "X-Actor-Role": "admin",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}
