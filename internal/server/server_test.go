package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"printline/internal/config"
	"printline/internal/db"
	"printline/internal/domain"
	"printline/internal/engine"
	"printline/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("shop-1")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	ctx := context.Background()
	if _, err := e.InitShop(ctx, cfg.Shop.ID, "Test Shop", "owner-1"); err != nil {
		t.Fatalf("init shop: %v", err)
	}
	seedStaff(t, e, domain.Staff{ID: "des-1", ShopID: cfg.Shop.ID, Name: "Dana", Role: "designer"})

	handler, err := New(Config{
		Engine: e,
		Auth:   AuthConfig{JWTSecret: "test-secret", AllowLegacyActorHeader: true},
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
	t.Cleanup(testSrv.close)
	return testSrv
}

func seedStaff(t *testing.T, e engine.Engine, s domain.Staff) {
	t.Helper()
	ctx := context.Background()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	s.CreatedAt = "2024-01-01T00:00:00Z"
	if err := e.Repo.InsertStaff(ctx, tx, s); err != nil {
		t.Fatalf("insert staff: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

var asOwner = map[string]string{"X-Actor-Id": "owner-1"}

func TestJobLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/clients", map[string]any{
		"name": "Acme Apparel",
	}, asOwner)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create client: %d %s", res.StatusCode, string(data))
	}
	var cl domain.Client
	_ = json.Unmarshal(data, &cl)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders", map[string]any{
		"client_id": cl.ID,
		"due_date":  "2026-09-15",
	}, asOwner)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create order: %d %s", res.StatusCode, string(data))
	}
	var ord domain.Order
	_ = json.Unmarshal(data, &ord)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs", map[string]any{
		"order_id": ord.ID,
		"type":     "print",
	}, asOwner)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create job: %d %s", res.StatusCode, string(data))
	}
	var job domain.Job
	_ = json.Unmarshal(data, &job)
	if job.Status != "pending" {
		t.Fatalf("expected pending, got %s", job.Status)
	}
	if job.DueDate == nil {
		t.Fatalf("job should inherit the order due date")
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs/"+job.ID+"/transition", map[string]any{
		"target": "in_progress",
	}, asOwner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("start job: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &job)
	if job.StartTime == nil {
		t.Fatalf("start_time not stamped")
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs/"+job.ID+"/transition", map[string]any{
		"target":          "completed",
		"expected_status": "in_progress",
	}, asOwner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete job: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &job)
	if job.Status != "completed" || job.EndTime == nil || job.DurationMinutes == nil {
		t.Fatalf("completion did not stamp end/duration: %+v", job)
	}
	if job.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", job.Progress)
	}
}

func TestTransitionErrorStatuses(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/clients", map[string]any{"name": "C"}, asOwner)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create client: %d %s", res.StatusCode, string(data))
	}
	var cl domain.Client
	_ = json.Unmarshal(data, &cl)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders", map[string]any{"client_id": cl.ID}, asOwner)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create order: %d %s", res.StatusCode, string(data))
	}
	var ord domain.Order
	_ = json.Unmarshal(data, &ord)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs", map[string]any{
		"order_id": ord.ID, "type": "press",
	}, asOwner)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create job: %d %s", res.StatusCode, string(data))
	}
	var job domain.Job
	_ = json.Unmarshal(data, &job)

	// pending -> completed is not an edge: conflict.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs/"+job.ID+"/transition", map[string]any{
		"target": "completed",
	}, asOwner)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %q", envelope.Error.Code)
	}

	// Designer lacks jobs.execute: forbidden.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs/"+job.ID+"/transition", map[string]any{
		"target": "in_progress",
	}, map[string]string{"X-Actor-Id": "des-1"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", res.StatusCode, string(data))
	}

	// Rejecting a design without feedback fails the guard: 422.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/designs", map[string]any{
		"order_id": ord.ID, "title": "Tee front",
	}, asOwner)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create design: %d %s", res.StatusCode, string(data))
	}
	var design domain.DesignProject
	_ = json.Unmarshal(data, &design)
	for _, target := range []string{"in_progress", "review"} {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/designs/"+design.ID+"/transition", map[string]any{
			"target": target,
		}, asOwner)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("move design to %s: %d %s", target, res.StatusCode, string(data))
		}
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/designs/"+design.ID+"/transition", map[string]any{
		"target": "rejected",
	}, asOwner)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", res.StatusCode, string(data))
	}
}

func TestAuthAndMe(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/jobs", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "owner-1",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("no token in response: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", res.StatusCode, string(data))
	}
	var who WhoAmIResponse
	_ = json.Unmarshal(data, &who)
	if who.Actor.ID != "owner-1" || who.Actor.Role != "owner" {
		t.Fatalf("unexpected principal: %+v", who)
	}
	if len(who.Capabilities) == 0 {
		t.Fatalf("owner should have capabilities")
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/keys", map[string]any{
		"actor_id": "owner-1",
		"name":     "ci",
	}, asOwner)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create key: %d %s", res.StatusCode, string(data))
	}
	var created APIKeyCreatedResponse
	_ = json.Unmarshal(data, &created)
	if created.Key == "" {
		t.Fatalf("plaintext key missing")
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/status", nil, map[string]string{
		"X-Api-Key": created.Key,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status with api key: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/status", nil, map[string]string{
		"X-Api-Key": "pk_bogus",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad key, got %d %s", res.StatusCode, string(data))
	}
}

func TestAlertsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/clients", map[string]any{"name": "C"}, asOwner)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create client: %d %s", res.StatusCode, string(data))
	}
	var cl domain.Client
	_ = json.Unmarshal(data, &cl)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders", map[string]any{"client_id": cl.ID}, asOwner)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create order: %d %s", res.StatusCode, string(data))
	}
	var ord domain.Order
	_ = json.Unmarshal(data, &ord)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs", map[string]any{
		"order_id": ord.ID, "type": "cut", "due_date": "2020-01-01",
	}, asOwner)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create job: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/alerts", nil, asOwner)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("alerts: %d %s", res.StatusCode, string(data))
	}
	var alerts AlertsResponse
	_ = json.Unmarshal(data, &alerts)
	if len(alerts.Items) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts.Items))
	}
	if alerts.Items[0].Alert.Tier != "overdue" {
		t.Fatalf("expected overdue, got %s", alerts.Items[0].Alert.Tier)
	}
}
