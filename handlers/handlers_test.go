package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nobugs-bank/auth"
	"nobugs-bank/bankapi"
	"nobugs-bank/models"
	"nobugs-bank/session"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const directoryJSON = `[
	{"id": 1, "username": "al", "name": "Al", "role": "USER", "accounts": [
		{"id": 7, "accountNumber": "AC7", "balance": 100, "transactions": [
			{"id": 70, "type": "DEPOSIT", "amount": 100, "date": "2025-01-01T10:00:00", "relatedAccountId": 0}
		]}
	]},
	{"id": 2, "username": "bob", "name": "Bob", "role": "USER", "accounts": [
		{"id": 9, "accountNumber": "AC9", "balance": 20, "transactions": [
			{"id": 90, "type": "TRANSFER_IN", "amount": 20, "date": "2025-01-02T10:00:00", "relatedAccountId": 7}
		]}
	]}
]`

const accountsJSON = `[
	{"id": 7, "accountNumber": "AC7", "balance": 100, "transactions": [
		{"id": 70, "type": "DEPOSIT", "amount": 100, "date": "2025-01-01T10:00:00", "relatedAccountId": 0}
	]}
]`

type fakeBackend struct {
	mu        sync.Mutex
	transfers   []map[string]float64
	deposits    int
	directories int
}

func (f *fakeBackend) routes() http.Handler {
	r := mux.NewRouter()
	reply := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
	r.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch {
		case req.Username == "al" && req.Password == "pw":
			reply(w, http.StatusOK, `{"username":"al","role":"USER"}`)
		case req.Username == "admin" && req.Password == "admin":
			reply(w, http.StatusOK, `{"username":"admin","role":"ADMIN"}`)
		default:
			reply(w, http.StatusUnauthorized, `{"message":"Invalid username or password"}`)
		}
	}).Methods("POST")
	r.HandleFunc("/api/v1/customer/profile", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, `{"id":1,"username":"al","name":"Al","role":"USER"}`)
	}).Methods("GET")
	r.HandleFunc("/api/v1/customer/accounts", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, accountsJSON)
	}).Methods("GET")
	r.HandleFunc("/api/v1/accounts/deposit", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deposits++
		f.mu.Unlock()
		reply(w, http.StatusOK, `{}`)
	}).Methods("POST")
	r.HandleFunc("/api/v1/accounts/transfer", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]float64
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["amount"] > 100 {
			reply(w, http.StatusBadRequest, `{"message":"insufficient funds"}`)
			return
		}
		f.mu.Lock()
		f.transfers = append(f.transfers, req)
		f.mu.Unlock()
		reply(w, http.StatusOK, `{}`)
	}).Methods("POST")
	r.HandleFunc("/api/v1/admin/users", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.directories++
		f.mu.Unlock()
		reply(w, http.StatusOK, directoryJSON)
	}).Methods("GET")
	return r
}

type shell struct {
	handler http.Handler
	backend *fakeBackend
}

func newShell(t *testing.T, hour int) *shell {
	t.Helper()
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.routes())
	t.Cleanup(srv.Close)

	client := bankapi.New(srv.URL+"/api/v1", bankapi.WithTimeout(5*time.Second))
	admin := session.New("admin", models.RoleAdmin, "admin")
	dir := bankapi.NewDirectory(client, &admin)
	manager := auth.NewManager([]byte("test-secret"), time.Hour, session.NewMemoryStore())

	h := NewHandler(client, dir, manager)
	h.now = func() time.Time { return time.Date(2025, 1, 1, hour, 0, 0, 0, time.Local) }
	return &shell{handler: h.Routes(), backend: backend}
}

func (s *shell) do(method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *shell) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	rec := s.do(http.MethodPost, "/login", models.LoginRequest{Username: username, Password: password}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder) Page {
	t.Helper()
	var p Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestThemeAt(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2025, 1, 1, h, 30, 0, 0, time.UTC) }
	assert.Equal(t, "dark", ThemeAt(at(18)))
	assert.Equal(t, "dark", ThemeAt(at(5)))
	assert.Equal(t, "light", ThemeAt(at(6)))
	assert.Equal(t, "light", ThemeAt(at(17)))
}

func TestLoginLandsByRole(t *testing.T) {
	s := newShell(t, 20)

	rec := s.do(http.MethodPost, "/login", models.LoginRequest{Username: "al", Password: "pw"}, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	rec = s.do(http.MethodPost, "/login", models.LoginRequest{Username: "admin", Password: "admin"}, nil)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))
}

func TestLoginRejected(t *testing.T) {
	s := newShell(t, 9)
	rec := s.do(http.MethodPost, "/login", models.LoginRequest{Username: "al", Password: "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	p := decodePage(t, rec)
	require.NotNil(t, p.Notice)
	assert.Equal(t, "Invalid credentials", p.Notice.Text)
	assert.Equal(t, "light", p.Theme)
}

func TestDashboardShowsCachedHeader(t *testing.T) {
	s := newShell(t, 20)
	cookie := s.login(t, "al", "pw")

	rec := s.do(http.MethodGet, "/dashboard", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decodePage(t, rec)
	assert.Equal(t, "dashboard", p.Screen)
	assert.Equal(t, "dark", p.Theme)
	require.NotNil(t, p.Header)
	assert.Equal(t, "Al", p.Header.Name)
	assert.Equal(t, "@al", p.Header.Handle)
	assert.Contains(t, rec.Body.String(), `"balance":"100.00"`)
}

func TestRoleGuard(t *testing.T) {
	s := newShell(t, 9)

	rec := s.do(http.MethodGet, "/dashboard", nil, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = s.do(http.MethodGet, "/deposit", nil, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	user := s.login(t, "al", "pw")
	rec = s.do(http.MethodGet, "/admin", nil, user)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	admin := s.login(t, "admin", "admin")
	rec = s.do(http.MethodGet, "/dashboard", nil, admin)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	rec = s.do(http.MethodGet, "/admin", nil, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"bob"`)
}

func TestTransferSuccess(t *testing.T) {
	s := newShell(t, 9)
	cookie := s.login(t, "al", "pw")

	rec := s.do(http.MethodPost, "/transfer", models.TransferDraft{
		SenderAccountID:        "7",
		RecipientName:          "Bob",
		RecipientAccountNumber: "AC9",
		Amount:                 "50",
		Confirmed:              true,
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decodePage(t, rec)
	assert.Equal(t, "Successfully transferred $50 to account AC9!", p.Notice.Text)
	require.Len(t, s.backend.transfers, 1)
	assert.Equal(t, map[string]float64{"senderAccountId": 7, "receiverAccountId": 9, "amount": 50}, s.backend.transfers[0])
}

func TestTransferInsufficientFunds(t *testing.T) {
	s := newShell(t, 9)
	cookie := s.login(t, "al", "pw")

	draft := models.TransferDraft{
		SenderAccountID:        "7",
		RecipientName:          "Bob",
		RecipientAccountNumber: "AC9",
		Amount:                 "500",
		Confirmed:              true,
	}
	rec := s.do(http.MethodPost, "/transfer", draft, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Notice Notice `json:"notice"`
		Data   struct {
			Draft models.TransferDraft `json:"draft"`
			State string               `json:"state"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Error: insufficient funds", body.Notice.Text)
	assert.Equal(t, draft, body.Data.Draft)
	assert.Equal(t, "editing", body.Data.State)
}

func TestTransferRecipientNameMismatch(t *testing.T) {
	s := newShell(t, 9)
	cookie := s.login(t, "al", "pw")

	rec := s.do(http.MethodPost, "/transfer", models.TransferDraft{
		SenderAccountID:        "7",
		RecipientName:          "Al",
		RecipientAccountNumber: "AC9",
		Amount:                 "5",
		Confirmed:              true,
	}, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "The recipient name does not match the registered name.", decodePage(t, rec).Notice.Text)
	assert.Empty(t, s.backend.transfers)
}

func TestDepositOverLimitMakesNoCall(t *testing.T) {
	s := newShell(t, 9)
	cookie := s.login(t, "al", "pw")

	rec := s.do(http.MethodPost, "/deposit", map[string]string{"accountId": "7", "amount": "5001"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please deposit less or equal to 5000$.", decodePage(t, rec).Notice.Text)
	assert.Zero(t, s.backend.deposits)

	rec = s.do(http.MethodPost, "/deposit", map[string]string{"accountId": "7", "amount": "5000"}, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Successfully deposited $5000 to account AC7!", decodePage(t, rec).Notice.Text)
	assert.Equal(t, 1, s.backend.deposits)
}

func TestRepeatTransfer(t *testing.T) {
	s := newShell(t, 9)
	cookie := s.login(t, "al", "pw")

	rec := s.do(http.MethodGet, "/transfer/repeat?q=BOB", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"matchedName":"Bob"`)

	rec = s.do(http.MethodGet, "/transfer/repeat?q=zed", nil, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "No matching users found.", decodePage(t, rec).Notice.Text)

	rec = s.do(http.MethodGet, "/transfer/repeat/90", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var selected struct {
		Data models.RepeatDraft `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &selected))
	assert.True(t, selected.Data.Open)
	assert.Empty(t, selected.Data.SenderAccountID)

	draft := selected.Data
	draft.SenderAccountID = "7"
	draft.Confirmed = true
	rec = s.do(http.MethodPost, "/transfer/repeat", draft, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Successfully transferred $20 to account 9!", decodePage(t, rec).Notice.Text)
	require.Len(t, s.backend.transfers, 1)
	assert.Equal(t, float64(9), s.backend.transfers[0]["receiverAccountId"])
}

func TestRepeatSearchBlankQuerySkipsDirectory(t *testing.T) {
	s := newShell(t, 9)
	cookie := s.login(t, "al", "pw")

	for _, path := range []string{"/transfer/repeat?q=", "/transfer/repeat?q=%20%20"} {
		rec := s.do(http.MethodGet, path, nil, cookie)
		require.Equal(t, http.StatusOK, rec.Code)
		p := decodePage(t, rec)
		assert.Equal(t, "repeat", p.Screen)
		assert.Nil(t, p.Notice)
	}
	assert.Equal(t, 0, s.backend.directories)
}

func TestExportStatement(t *testing.T) {
	s := newShell(t, 9)
	cookie := s.login(t, "al", "pw")

	rec := s.do(http.MethodGet, "/dashboard/export?format=pdf", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

	rec = s.do(http.MethodGet, "/dashboard/export?format=csv", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutForgetsSession(t *testing.T) {
	s := newShell(t, 9)
	cookie := s.login(t, "al", "pw")

	rec := s.do(http.MethodPost, "/logout", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = s.do(http.MethodGet, "/dashboard", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestLoggingMiddlewareCountsErrors(t *testing.T) {
	before := requestsErrors.Value()
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, before+1, requestsErrors.Value())
}
