package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/focusdeck/focusdeck/internal/app/accounts"
	"github.com/focusdeck/focusdeck/internal/app/agent"
	"github.com/focusdeck/focusdeck/internal/app/ledger"
	"github.com/focusdeck/focusdeck/internal/app/meter"
	"github.com/focusdeck/focusdeck/internal/app/records"
	"github.com/focusdeck/focusdeck/internal/app/syncer"
	"github.com/focusdeck/focusdeck/internal/domain"
	"github.com/focusdeck/focusdeck/internal/infra/bus"
	"github.com/focusdeck/focusdeck/internal/infra/localstore"
	"github.com/focusdeck/focusdeck/internal/infra/sqlite"
)

// scriptedModel returns a fixed response for every turn.
type scriptedModel struct {
	resp domain.ModelResponse
}

func (m *scriptedModel) Send(_ context.Context, _ domain.ModelRequest) (*domain.ModelResponse, error) {
	resp := m.resp
	return &resp, nil
}

func newTestServer(t *testing.T, model domain.ModelClient) *httptest.Server {
	t.Helper()

	hub := bus.New()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetNotifier(hub)

	local, err := localstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("localstore.New: %v", err)
	}

	accountStore := accounts.New(db, local)
	ledgerSvc := ledger.New(accountStore)
	gateway := meter.New(ledgerSvc)
	coordinator := syncer.New(records.New(db, local), hub)
	t.Cleanup(coordinator.Close)
	ledgerSvc.SetBalanceHook(coordinator.RefreshBalance)

	srv := NewServer(accountStore, ledgerSvc, gateway, coordinator, hub)
	if model != nil {
		srv.SetDispatcher(agent.New(model, coordinator))
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

// createSession registers an account and makes it the active session.
func createSession(t *testing.T, base string) domain.Account {
	t.Helper()
	var account domain.Account
	resp := doJSON(t, "POST", base+"/api/accounts", map[string]any{"name": "Dana", "email": "dana@example.com"}, &account)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create account: status %d", resp.StatusCode)
	}
	var session sessionResponse
	resp = doJSON(t, "POST", base+"/api/session", map[string]any{"accountId": account.ID}, &session)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("switch session: status %d", resp.StatusCode)
	}
	return account
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := doJSON(t, "GET", ts.URL+"/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestAccountLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	account := createSession(t, ts.URL)

	if account.Balance != domain.WeeklyGrant {
		t.Fatalf("balance = %v, want weekly grant", account.Balance)
	}

	var got domain.Account
	resp := doJSON(t, "GET", ts.URL+"/api/accounts/"+account.ID, nil, &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get account: status %d", resp.StatusCode)
	}
	if got.ID != account.ID {
		t.Fatalf("id = %q, want %q", got.ID, account.ID)
	}

	resp = doJSON(t, "GET", ts.URL+"/api/accounts/nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown account: status %d, want 404", resp.StatusCode)
	}
}

func TestRecordCRUDOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	createSession(t, ts.URL)

	var created domain.Task
	resp := doJSON(t, "POST", ts.URL+"/api/records/task", domain.Task{Title: "write proposal"}, &created)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert: status %d", resp.StatusCode)
	}
	if created.ID == "" {
		t.Fatal("no id generated")
	}

	var listing struct {
		Records domain.RecordSet `json:"records"`
	}
	doJSON(t, "GET", ts.URL+"/api/records", nil, &listing)
	if len(listing.Records.Tasks) != 1 || listing.Records.Tasks[0].Title != "write proposal" {
		t.Fatalf("records = %+v", listing.Records.Tasks)
	}

	resp = doJSON(t, "DELETE", ts.URL+"/api/records/task/"+created.ID, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}
	doJSON(t, "GET", ts.URL+"/api/records", nil, &listing)
	if len(listing.Records.Tasks) != 0 {
		t.Fatalf("task not deleted: %+v", listing.Records.Tasks)
	}
}

func TestProjectDeleteCascadesOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	createSession(t, ts.URL)

	var project domain.Project
	doJSON(t, "POST", ts.URL+"/api/records/project", domain.Project{Name: "Site"}, &project)
	var task domain.Task
	doJSON(t, "POST", ts.URL+"/api/records/task", domain.Task{Title: "build", ProjectID: project.ID}, &task)

	doJSON(t, "DELETE", ts.URL+"/api/records/project/"+project.ID, nil, nil)

	var listing struct {
		Records domain.RecordSet `json:"records"`
	}
	doJSON(t, "GET", ts.URL+"/api/records", nil, &listing)
	if len(listing.Records.Projects) != 0 {
		t.Fatal("project not deleted")
	}
	if len(listing.Records.Tasks) != 1 || listing.Records.Tasks[0].ProjectID != "" {
		t.Fatalf("task reference not cleared: %+v", listing.Records.Tasks)
	}
}

func TestUnknownKindRejected(t *testing.T) {
	ts := newTestServer(t, nil)
	createSession(t, ts.URL)

	resp := doJSON(t, "POST", ts.URL+"/api/records/widget", map[string]any{"id": "w1"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHabitToggle(t *testing.T) {
	ts := newTestServer(t, nil)
	createSession(t, ts.URL)

	var habit domain.Habit
	doJSON(t, "POST", ts.URL+"/api/records/habit", domain.Habit{Name: "Run"}, &habit)

	today := time.Now().UTC().Format(time.DateOnly)
	var toggled domain.Habit
	resp := doJSON(t, "POST", ts.URL+"/api/records/habit/"+habit.ID+"/toggle", map[string]any{"date": today}, &toggled)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle: status %d", resp.StatusCode)
	}
	if toggled.Streak != 1 || !toggled.CompletedOn(today) {
		t.Fatalf("habit = %+v, want streak 1 with today completed", toggled)
	}

	toggled = domain.Habit{} // reset: completedDates is omitempty, so a stale slice would survive decoding
	doJSON(t, "POST", ts.URL+"/api/records/habit/"+habit.ID+"/toggle", map[string]any{"date": today}, &toggled)
	if toggled.Streak != 0 || toggled.CompletedOn(today) {
		t.Fatalf("habit = %+v, want toggle back off", toggled)
	}
}

func TestChatChargesAndRunsTools(t *testing.T) {
	model := &scriptedModel{resp: domain.ModelResponse{
		Text: "Added it.",
		ToolCalls: []domain.ToolCall{
			{ID: "c1", Name: "create_task", Args: json.RawMessage(`{"title":"laundry"}`)},
		},
	}}
	ts := newTestServer(t, model)
	createSession(t, ts.URL)

	var chat chatResponse
	resp := doJSON(t, "POST", ts.URL+"/api/chat", map[string]any{"text": "add laundry", "requestId": "r1"}, &chat)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat: status %d", resp.StatusCode)
	}
	if chat.Text != "Added it." {
		t.Fatalf("text = %q", chat.Text)
	}
	if chat.Balance != domain.WeeklyGrant-domain.FeatureChatNormal.Cost() {
		t.Fatalf("balance = %v", chat.Balance)
	}
	if len(chat.ToolResults) != 1 || !chat.ToolResults[0].Success {
		t.Fatalf("tool results = %+v", chat.ToolResults)
	}
	if chat.SessionID == "" {
		t.Fatal("no session recorded")
	}

	var listing struct {
		Records domain.RecordSet `json:"records"`
	}
	doJSON(t, "GET", ts.URL+"/api/records", nil, &listing)
	if len(listing.Records.Tasks) != 1 || listing.Records.Tasks[0].Title != "laundry" {
		t.Fatalf("tasks = %+v", listing.Records.Tasks)
	}
	if len(listing.Records.ChatSessions) != 1 {
		t.Fatalf("chat sessions = %+v", listing.Records.ChatSessions)
	}
}

func TestChatRetryNotDoubleCharged(t *testing.T) {
	model := &scriptedModel{resp: domain.ModelResponse{Text: "Hi."}}
	ts := newTestServer(t, model)
	createSession(t, ts.URL)

	var first, second chatResponse
	doJSON(t, "POST", ts.URL+"/api/chat", map[string]any{"text": "hello", "requestId": "r1"}, &first)
	doJSON(t, "POST", ts.URL+"/api/chat", map[string]any{"text": "hello", "requestId": "r1"}, &second)

	if first.Balance != second.Balance {
		t.Fatalf("retry charged again: %v vs %v", first.Balance, second.Balance)
	}

	var txs struct {
		Transactions []domain.LedgerTransaction `json:"transactions"`
	}
	doJSON(t, "GET", ts.URL+"/api/ledger/transactions", nil, &txs)
	if len(txs.Transactions) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(txs.Transactions))
	}
}

func TestChatInsufficientBalance(t *testing.T) {
	model := &scriptedModel{resp: domain.ModelResponse{Text: "Hi."}}
	ts := newTestServer(t, model)
	createSession(t, ts.URL)

	// Ignite costs 60; the grant covers 16 sends.
	var last chatResponse
	for i := 0; i < 16; i++ {
		resp := doJSON(t, "POST", ts.URL+"/api/chat",
			map[string]any{"text": "go", "ignite": true, "requestId": fmt.Sprintf("r%d", i)}, &last)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("send %d: status %d", i, resp.StatusCode)
		}
	}

	resp := doJSON(t, "POST", ts.URL+"/api/chat",
		map[string]any{"text": "go", "ignite": true, "requestId": "r16"}, nil)
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", resp.StatusCode)
	}

	var balance struct {
		Balance domain.Cents `json:"balance"`
	}
	doJSON(t, "GET", ts.URL+"/api/account/balance", nil, &balance)
	if balance.Balance != last.Balance {
		t.Fatalf("balance moved after refusal: %v vs %v", balance.Balance, last.Balance)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	createSession(t, ts.URL)

	var got struct {
		Balance domain.Cents `json:"balance"`
		Display string       `json:"display"`
	}
	resp := doJSON(t, "GET", ts.URL+"/api/account/balance", nil, &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got.Balance != domain.WeeklyGrant || got.Display != "10.00" {
		t.Fatalf("balance = %+v", got)
	}
}

func TestChatWithoutDispatcher(t *testing.T) {
	ts := newTestServer(t, nil)
	createSession(t, ts.URL)

	resp := doJSON(t, "POST", ts.URL+"/api/chat", map[string]any{"text": "hi", "requestId": "r1"}, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestSessionTitleTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("ü", 50)
	title := sessionTitle("  " + long + "  ")
	if !utf8.ValidString(title) {
		t.Fatalf("title %q is not valid UTF-8", title)
	}
	if n := utf8.RuneCountInString(title); n != 40 {
		t.Fatalf("title runes = %d, want 40", n)
	}

	if got := sessionTitle("  plan the week  "); got != "plan the week" {
		t.Fatalf("title = %q, want trimmed input unchanged", got)
	}
}
