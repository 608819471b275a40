package bankapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"nobugs-bank/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userSession = &models.Session{Username: "al", Role: models.RoleUser, Token: "Basic YWw6cHc="}

func TestClientSendsDefaultHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/customer/accounts", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "Basic YWw6cHc=", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":7,"accountNumber":"AC1","balance":12.5,"transactions":[{"id":1,"type":"DEPOSIT","amount":12.5,"date":"2025-01-02"}]}]`))
	}))
	defer srv.Close()

	accounts, err := New(srv.URL + "/api/v1/").Accounts(context.Background(), userSession)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, int64(7), accounts[0].ID)
	assert.True(t, accounts[0].Balance.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, models.TransactionDeposit, accounts[0].Transactions[0].Type)
}

func TestLoginSendsNoAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var req models.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "al", req.Username)
		assert.Equal(t, "pw", req.Password)
		_, _ = w.Write([]byte(`{"username":"al","role":"USER"}`))
	}))
	defer srv.Close()

	resp, err := New(srv.URL).Login(context.Background(), "al", "pw")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, resp.Role)
}

func TestTransferEncodesAmountAsNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, 25.5, raw["amount"])
		assert.Equal(t, float64(1), raw["senderAccountId"])
		assert.Equal(t, float64(7), raw["receiverAccountId"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := New(srv.URL).Transfer(context.Background(), userSession, models.TransferRequest{
		SenderAccountID:   1,
		ReceiverAccountID: 7,
		Amount:            decimal.RequireFromString("25.5"),
	})
	require.NoError(t, err)
}

func TestRejectedCarriesBackendMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"json message", `{"message":"insufficient funds"}`, "insufficient funds"},
		{"plain body", "account frozen", "account frozen"},
		{"empty body", "", defaultRejectMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			err := New(srv.URL).Transfer(context.Background(), userSession, models.TransferRequest{})
			var rejected *RejectedError
			require.ErrorAs(t, err, &rejected)
			assert.Equal(t, http.StatusBadRequest, rejected.Status)
			assert.Equal(t, tc.want, rejected.Message)
			assert.False(t, errors.Is(err, ErrUnauthorized))
		})
	}
}

func TestUnauthorizedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Profile(context.Background(), userSession)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Accounts(context.Background(), userSession)
	assert.ErrorIs(t, err, ErrNetworkOrServer)
	var rejected *RejectedError
	assert.False(t, errors.As(err, &rejected))
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).Accounts(context.Background(), userSession)
	assert.ErrorIs(t, err, ErrNetworkOrServer)
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(srv.URL, WithTimeout(50*time.Millisecond)).Accounts(context.Background(), userSession)
	assert.ErrorIs(t, err, ErrRequestTimedOut)
}

func TestMissingSessionMakesNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	client := New(srv.URL)
	_, err := client.Accounts(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = client.Accounts(context.Background(), &models.Session{Username: "al"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestDirectoryUsesElevatedSession(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/admin/users", r.URL.Path)
		assert.Equal(t, "Basic YWRtaW46YWRtaW4=", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":1,"username":"al","name":"Al","role":"USER","accounts":[]}]`))
	}))
	defer srv.Close()

	dir := NewDirectory(New(srv.URL), &models.Session{Username: "admin", Role: models.RoleAdmin, Token: "Basic YWRtaW46YWRtaW4="})
	for i := 0; i < 2; i++ {
		users, err := dir.Users(context.Background())
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "Al", users[0].Name)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
