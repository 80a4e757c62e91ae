package push

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/pushrelay/internal/pkg/ctxlog"
	"github.com/bissquit/pushrelay/internal/pkg/httputil"
	"github.com/bissquit/pushrelay/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openAPISpec = "../../api/openapi/openapi.yaml"

func newTestRouter(service *Service, vapidKey string) http.Handler {
	h := NewHandler(service, vapidKey)
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		h.RegisterPublicRoutes(r)
		h.RegisterRoutes(r)
	})
	return r
}

type envelope[T any] struct {
	Data  T `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func decode[T any](t *testing.T, body []byte) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

func TestHandler_Send(t *testing.T) {
	validator := testutil.NewOpenAPIValidator(t, openAPISpec)

	repo := newFakeRepository(newSub("alice", "e-alice"), newSub("bob", "e-bob"), newSub("carol", "e-carol"))
	repo.members["c1"] = []string{"alice", "bob", "carol"}
	transport := newFakeTransport()
	transport.results["e-carol"] = statusErr(410)
	router := newTestRouter(newTestService(repo, transport), "pub")

	rec := validator.Serve(t, router, http.MethodPost, "/api/v1/push/send",
		[]byte(`{"kind":"chat","channel_id":"c1","from_username":"alice","body":"hello"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[Report](t, rec.Body.Bytes()).Data
	assert.Equal(t, 2, report.Targeted)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Deactivated)
	assert.Equal(t, map[string]int{"410": 1}, report.FailuresByStatus)
}

func TestHandler_Send_Errors(t *testing.T) {
	validator := testutil.NewOpenAPIValidator(t, openAPISpec)

	tests := []struct {
		name      string
		service   *Service
		body      string
		status    int
		errSubstr string
	}{
		{
			name:      "invalid json",
			service:   newTestService(newFakeRepository(), newFakeTransport()),
			body:      `{"kind":`,
			status:    http.StatusBadRequest,
			errSubstr: "invalid json",
		},
		{
			name:      "missing kind",
			service:   newTestService(newFakeRepository(), newFakeTransport()),
			body:      `{"body":"hi"}`,
			status:    http.StatusBadRequest,
			errSubstr: "validation error",
		},
		{
			name:      "transport not configured",
			service:   NewService(newFakeRepository(), nil, NewPayloadBuilder(DefaultPayloadConfig())),
			body:      `{"kind":"blog"}`,
			status:    http.StatusServiceUnavailable,
			errSubstr: "push delivery is not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(tt.service, "pub")

			rec := validator.Serve(t, router, http.MethodPost, "/api/v1/push/send", []byte(tt.body))

			assert.Equal(t, tt.status, rec.Code)
			env := decode[json.RawMessage](t, rec.Body.Bytes())
			require.NotNil(t, env.Error)
			assert.Contains(t, env.Error.Message, tt.errSubstr)
		})
	}
}

func TestHandler_Send_RegistryFailure(t *testing.T) {
	validator := testutil.NewOpenAPIValidator(t, openAPISpec)

	repo := newFakeRepository(newSub("bob", "e1"))
	repo.listErr = assert.AnError
	router := newTestRouter(newTestService(repo, newFakeTransport()), "pub")

	rec := validator.Serve(t, router, http.MethodPost, "/api/v1/push/send", []byte(`{"kind":"blog"}`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_Subscriptions(t *testing.T) {
	validator := testutil.NewOpenAPIValidator(t, openAPISpec)

	repo := newFakeRepository()
	router := newTestRouter(newTestService(repo, newFakeTransport()), "pub")

	body := []byte(`{"username":"bob","endpoint":"https://push.example/abc","keys":{"p256dh":"BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM","auth":"tBHItJI5svbpez7KI4CCXg"}}`)

	rec := validator.Serve(t, router, http.MethodPost, "/api/v1/push/subscriptions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec.Body.Bytes()).Data
	assert.Equal(t, "bob", created["username"])
	assert.Equal(t, true, created["enabled"])

	rec = validator.Serve(t, router, http.MethodDelete, "/api/v1/push/subscriptions",
		[]byte(`{"endpoint":"https://push.example/abc"}`))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = validator.Serve(t, router, http.MethodDelete, "/api/v1/push/subscriptions",
		[]byte(`{"endpoint":"https://push.example/abc"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Subscribe_Invalid(t *testing.T) {
	validator := testutil.NewOpenAPIValidator(t, openAPISpec)
	router := newTestRouter(newTestService(newFakeRepository(), newFakeTransport()), "pub")

	tests := []struct {
		name string
		body string
	}{
		{"missing keys", `{"username":"bob","endpoint":"https://push.example/abc"}`},
		{"endpoint not a url", `{"username":"bob","endpoint":"nope","keys":{"p256dh":"AAAA","auth":"AAAA"}}`},
		{"keys not base64", `{"username":"bob","endpoint":"https://push.example/abc","keys":{"p256dh":"!!","auth":"??"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validator.Serve(t, router, http.MethodPost, "/api/v1/push/subscriptions", []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandler_GetVAPIDPublicKey(t *testing.T) {
	validator := testutil.NewOpenAPIValidator(t, openAPISpec)
	service := newTestService(newFakeRepository(), newFakeTransport())

	t.Run("configured", func(t *testing.T) {
		rec := validator.Serve(t, newTestRouter(service, "BPublicKey"), http.MethodGet, "/api/v1/push/vapid-public-key", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "BPublicKey", decode[map[string]string](t, rec.Body.Bytes()).Data["public_key"])
	})

	t.Run("not configured", func(t *testing.T) {
		rec := validator.Serve(t, newTestRouter(service, ""), http.MethodGet, "/api/v1/push/vapid-public-key", nil)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHandler_Send_LogsCaller(t *testing.T) {
	repo := newFakeRepository(newSub("bob", "e-bob"))
	handler := NewHandler(newTestService(repo, newFakeTransport()), "pub")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	ctx := ctxlog.WithLogger(context.Background(), logger)
	ctx = context.WithValue(ctx, httputil.CallerKey, "chat-backend")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/push/send", strings.NewReader(`{"kind":"blog"}`))
	rec := httptest.NewRecorder()

	handler.Send(rec, req.WithContext(ctx))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), "caller=chat-backend")
	assert.Contains(t, logs.String(), "dispatch_id=")
}
