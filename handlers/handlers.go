// Package handlers is the client shell: one JSON screen per route of the
// banking client, backed by the remote bank API.
package handlers

import (
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nobugs-bank/auth"
	"nobugs-bank/bankapi"
	"nobugs-bank/banking"
	"nobugs-bank/export"
	"nobugs-bank/models"
	"nobugs-bank/resolver"
	"nobugs-bank/transfer"

	"github.com/gorilla/mux"
)

// Backend is the part of the bank API the shell calls with the user's own
// session.
type Backend interface {
	banking.LoginAPI
	banking.AccountsAPI
	banking.ProfileAPI
	banking.AdminAPI
	transfer.Transferer
}

type Handler struct {
	api      Backend
	workflow *transfer.Workflow
	sessions *auth.Manager
	now      func() time.Time
}

func NewHandler(api Backend, dir resolver.Directory, sessions *auth.Manager) *Handler {
	return &Handler{
		api:      api,
		workflow: transfer.NewWorkflow(api, dir),
		sessions: sessions,
		now:      time.Now,
	}
}

func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(h.sessions.VerifyToken)

	r.HandleFunc("/", h.LoginPage).Methods("GET")
	r.HandleFunc("/login", h.LoginPage).Methods("GET")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/logout", h.Logout).Methods("POST")
	r.Handle("/debug/vars", expvar.Handler()).Methods("GET")

	user := r.NewRoute().Subrouter()
	user.Use(auth.RequireRole(models.RoleUser))
	user.HandleFunc("/dashboard", h.Dashboard).Methods("GET")
	user.HandleFunc("/dashboard/export", h.ExportStatement).Methods("GET")

	admin := r.NewRoute().Subrouter()
	admin.Use(auth.RequireRole(models.RoleAdmin))
	admin.HandleFunc("/admin", h.AdminPanel).Methods("GET")
	admin.HandleFunc("/admin", h.CreateUser).Methods("POST")

	s := r.NewRoute().Subrouter()
	s.Use(auth.RequireSession)
	s.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	s.HandleFunc("/deposit", h.DepositPage).Methods("GET")
	s.HandleFunc("/deposit", h.Deposit).Methods("POST")
	s.HandleFunc("/transfer", h.TransferPage).Methods("GET")
	s.HandleFunc("/transfer", h.Transfer).Methods("POST")
	s.HandleFunc("/transfer/repeat", h.RepeatSearch).Methods("GET")
	s.HandleFunc("/transfer/repeat/{txID:[0-9]+}", h.RepeatSelect).Methods("GET")
	s.HandleFunc("/transfer/repeat", h.ConfirmRepeat).Methods("POST")
	s.HandleFunc("/edit-profile", h.ProfilePage).Methods("GET")
	s.HandleFunc("/edit-profile", h.UpdateProfile).Methods("POST")

	return r
}

// ThemeAt is the colour scheme for local time t.
func ThemeAt(t time.Time) string {
	if hour := t.Hour(); hour >= 18 || hour < 6 {
		return "dark"
	}
	return "light"
}

type Header struct {
	Name   string `json:"name"`
	Handle string `json:"handle"`
}

type Notice struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Page is the body of every screen response.
type Page struct {
	Screen string      `json:"screen"`
	Theme  string      `json:"theme"`
	Header *Header     `json:"header,omitempty"`
	Notice *Notice     `json:"notice,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

func (h *Handler) page(r *http.Request, screen string, data interface{}) Page {
	p := Page{Screen: screen, Theme: ThemeAt(h.now()), Data: data}
	if cur, ok := auth.FromContext(r.Context()); ok && cur.Record.User != nil {
		p.Header = &Header{Name: cur.Record.User.HeaderName(), Handle: cur.Record.User.Handle()}
	}
	return p
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, screen string, data interface{}, notice *Notice) {
	p := h.page(r, screen, data)
	p.Notice = notice
	writeJSON(w, status, p)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, screen, action string, data interface{}, err error) {
	log.Printf("screen=%s action=%s error=%v", screen, action, err)
	h.render(w, r, statusFor(err), screen, data, &Notice{Kind: "error", Text: banking.Notice(action, err)})
}

func success(text string) *Notice {
	return &Notice{Kind: "success", Text: text}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response error=%v", err)
	}
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.Invalid("", "Malformed request.")
	}
	return nil
}

func statusFor(err error) int {
	var verr *models.ValidationError
	var rejected *bankapi.RejectedError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, banking.ErrInvalidCredentials), errors.Is(err, bankapi.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &rejected):
		return rejected.Status
	case errors.Is(err, bankapi.ErrRequestTimedOut):
		return http.StatusGatewayTimeout
	case errors.Is(err, bankapi.ErrNetworkOrServer):
		return http.StatusBadGateway
	case errors.Is(err, resolver.ErrRecipientNotFound),
		errors.Is(err, resolver.ErrRecipientNameMismatch),
		errors.Is(err, resolver.ErrTransactionNotTraceable),
		errors.Is(err, transfer.ErrSelfTransfer),
		errors.Is(err, transfer.ErrNoMatchingUsers):
		return http.StatusUnprocessableEntity
	case errors.Is(err, transfer.ErrUnknownTransaction):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// current is only called behind RequireSession or RequireRole.
func current(r *http.Request) (*auth.Current, *models.Session) {
	cur, _ := auth.FromContext(r.Context())
	return cur, cur.Session()
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", nil, nil)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "login", "Login", nil, err)
		return
	}

	sess, err := banking.Login(r.Context(), h.api, req.Username, req.Password)
	if err != nil {
		h.fail(w, r, "login", "Login", nil, err)
		return
	}

	var cached *models.Profile
	if sess.Role == models.RoleUser {
		profile, err := h.api.Profile(r.Context(), &sess)
		if err != nil {
			log.Printf("profile fetch failed user=%s error=%v", sess.Username, err)
		} else {
			cached = &profile
		}
	}

	if _, err := h.sessions.Start(r.Context(), w, sess, cached); err != nil {
		h.fail(w, r, "login", "Login", nil, err)
		return
	}
	http.Redirect(w, r, banking.Landing(sess.Role), http.StatusSeeOther)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	cur, _ := auth.FromContext(r.Context())
	if err := h.sessions.End(r.Context(), w, cur); err != nil {
		log.Printf("logout error=%v", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	_, sess := current(r)
	accounts, err := banking.Dashboard(r.Context(), h.api, sess)
	if err != nil {
		h.fail(w, r, "dashboard", "Loading accounts", nil, err)
		return
	}
	h.render(w, r, http.StatusOK, "dashboard", map[string]interface{}{"accounts": accounts}, nil)
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	_, sess := current(r)
	accounts, err := banking.CreateAccount(r.Context(), h.api, sess)
	if err != nil {
		h.fail(w, r, "dashboard", "Creating account", nil, err)
		return
	}
	h.render(w, r, http.StatusCreated, "dashboard", map[string]interface{}{"accounts": accounts}, success("New account created!"))
}

func (h *Handler) ExportStatement(w http.ResponseWriter, r *http.Request) {
	_, sess := current(r)
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.fail(w, r, "dashboard", "Export", nil, models.Invalid("format", "Choose pdf or xlsx."))
		return
	}
	accounts, err := h.api.Accounts(r.Context(), sess)
	if err != nil {
		h.fail(w, r, "dashboard", "Export", nil, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="statement.%s"`, format))
	title := "Statement for " + sess.Username
	if err := export.Write(w, format, title, models.Statement(accounts)); err != nil {
		log.Printf("export failed user=%s format=%s error=%v", sess.Username, format, err)
	}
}

func (h *Handler) DepositPage(w http.ResponseWriter, r *http.Request) {
	_, sess := current(r)
	accounts, err := h.api.Accounts(r.Context(), sess)
	if err != nil {
		h.fail(w, r, "deposit", "Loading accounts", nil, err)
		return
	}
	h.render(w, r, http.StatusOK, "deposit", map[string]interface{}{"accounts": accounts}, nil)
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	_, sess := current(r)
	var form banking.DepositForm
	if err := decode(r, &form); err != nil {
		h.fail(w, r, "deposit", "Deposit", nil, err)
		return
	}
	accounts, err := h.api.Accounts(r.Context(), sess)
	if err != nil {
		h.fail(w, r, "deposit", "Deposit", form, err)
		return
	}
	account, amount, err := banking.Deposit(r.Context(), h.api, sess, accounts, form)
	if err != nil {
		h.fail(w, r, "deposit", "Deposit", form, err)
		return
	}
	h.render(w, r, http.StatusOK, "deposit", banking.DepositForm{}, success(banking.DepositNotice(account, amount)))
}

type transferView struct {
	Accounts []models.Account    `json:"accounts,omitempty"`
	Draft    models.TransferDraft `json:"draft"`
	State    string               `json:"state"`
}

func (h *Handler) TransferPage(w http.ResponseWriter, r *http.Request) {
	_, sess := current(r)
	accounts, err := h.api.Accounts(r.Context(), sess)
	if err != nil {
		h.fail(w, r, "transfer", "Loading accounts", nil, err)
		return
	}
	h.render(w, r, http.StatusOK, "transfer", transferView{Accounts: accounts, State: transfer.Editing.String()}, nil)
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	_, sess := current(r)
	var draft models.TransferDraft
	if err := decode(r, &draft); err != nil {
		h.fail(w, r, "transfer", "Transfer", nil, err)
		return
	}
	res, err := h.workflow.Submit(r.Context(), sess, draft)
	view := transferView{Draft: res.Draft, State: transfer.Editing.String()}
	if err != nil {
		h.fail(w, r, "transfer", "Transfer", view, err)
		return
	}
	h.render(w, r, http.StatusOK, "transfer", view, success(transfer.SuccessNotice(draft.Amount, draft.RecipientAccountNumber)))
}

type repeatView struct {
	Query   string                      `json:"query"`
	Results []models.MatchedTransaction `json:"results"`
}

func (h *Handler) RepeatSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		h.render(w, r, http.StatusOK, "repeat", repeatView{Query: query, Results: []models.MatchedTransaction{}}, nil)
		return
	}
	repeat, err := h.workflow.LoadRepeat(r.Context())
	if err != nil {
		h.fail(w, r, "repeat", "Search", nil, err)
		return
	}
	results, err := repeat.Search(query)
	view := repeatView{Query: query, Results: results}
	if err != nil {
		h.fail(w, r, "repeat", "Search", view, err)
		return
	}
	h.render(w, r, http.StatusOK, "repeat", view, nil)
}

func (h *Handler) RepeatSelect(w http.ResponseWriter, r *http.Request) {
	txID, err := strconv.ParseInt(mux.Vars(r)["txID"], 10, 64)
	if err != nil {
		h.fail(w, r, "repeat", "Repeat", nil, transfer.ErrUnknownTransaction)
		return
	}
	repeat, err := h.workflow.LoadRepeat(r.Context())
	if err != nil {
		h.fail(w, r, "repeat", "Repeat", nil, err)
		return
	}
	draft, err := repeat.Select(txID)
	if err != nil {
		h.fail(w, r, "repeat", "Repeat", nil, err)
		return
	}
	h.render(w, r, http.StatusOK, "repeat", draft, nil)
}

func (h *Handler) ConfirmRepeat(w http.ResponseWriter, r *http.Request) {
	_, sess := current(r)
	var draft models.RepeatDraft
	if err := decode(r, &draft); err != nil {
		h.fail(w, r, "repeat", "Transfer", nil, err)
		return
	}
	res, err := h.workflow.ConfirmRepeat(r.Context(), sess, draft)
	if err != nil {
		h.fail(w, r, "repeat", "Transfer", res.Draft, err)
		return
	}
	destination := strconv.FormatInt(res.ReceiverAccountID, 10)
	h.render(w, r, http.StatusOK, "repeat", res.Draft, success(transfer.SuccessNotice(draft.Amount, destination)))
}

func (h *Handler) ProfilePage(w http.ResponseWriter, r *http.Request) {
	_, sess := current(r)
	profile, err := h.api.Profile(r.Context(), sess)
	if err != nil {
		h.fail(w, r, "edit-profile", "Loading profile", nil, err)
		return
	}
	h.render(w, r, http.StatusOK, "edit-profile", profile, nil)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	cur, sess := current(r)
	var req models.ProfileUpdate
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "edit-profile", "Update", nil, err)
		return
	}
	profile, err := banking.UpdateProfile(r.Context(), h.api, sess, req.Name)
	if err != nil {
		h.fail(w, r, "edit-profile", "Update", nil, err)
		return
	}
	cur.Record.User = &profile
	if err := h.sessions.Update(r.Context(), cur); err != nil {
		log.Printf("session update failed id=%s error=%v", cur.ID, err)
	}
	h.render(w, r, http.StatusOK, "edit-profile", profile, success("Name updated successfully!"))
}

func (h *Handler) AdminPanel(w http.ResponseWriter, r *http.Request) {
	_, sess := current(r)
	users, err := banking.ListUsers(r.Context(), h.api, sess)
	if err != nil {
		h.fail(w, r, "admin", "Loading users", nil, err)
		return
	}
	h.render(w, r, http.StatusOK, "admin", map[string]interface{}{"users": users}, nil)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	_, sess := current(r)
	var req models.NewUser
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "admin", "Create user", nil, err)
		return
	}
	req.Role = models.Role(strings.ToUpper(string(req.Role)))
	users, err := banking.CreateUser(r.Context(), h.api, sess, req)
	if err != nil {
		h.fail(w, r, "admin", "Create user", nil, err)
		return
	}
	h.render(w, r, http.StatusCreated, "admin", map[string]interface{}{"users": users}, success("User created successfully!"))
}
