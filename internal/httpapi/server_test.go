// ABOUTME: Handler tests for the lexgate HTTP API using the in-memory store
// ABOUTME: Covers logins, chat history/send, scoping, admin listing, and webhooks

package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrio-legal/lexgate/internal/auth"
	"github.com/atrio-legal/lexgate/internal/chat"
	"github.com/atrio-legal/lexgate/internal/process"
	"github.com/atrio-legal/lexgate/internal/store"
)

const (
	testClientPassword = "client-password-1"
	testAdminPassword  = "admin-password-1"
	testWebhookSecret  = "hook-secret"
)

type testEnv struct {
	server   *Server
	store    *store.MockStore
	verifier *auth.JWTVerifier
	client   *store.Client
	admin    *store.AdminUser
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMockStore()
	broadcaster := chat.NewBroadcaster(nil)
	t.Cleanup(broadcaster.Close)

	manager := chat.NewManager(st, broadcaster, broadcaster, chat.Options{
		OpenTimeout:       2 * time.Second,
		ReconnectInitial:  time.Millisecond,
		ReconnectMax:      5 * time.Millisecond,
		ReconnectAttempts: 3,
	}, nil)
	verifier := auth.NewJWTVerifier([]byte("test-jwt-secret"), time.Hour)

	clientHash, err := auth.HashPassword(testClientPassword)
	require.NoError(t, err)
	client := &store.Client{
		ID:           uuid.New().String(),
		Name:         "Ana Souza",
		Email:        "ana@example.com",
		PasswordHash: clientHash,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, st.CreateClient(t.Context(), client))

	adminHash, err := auth.HashPassword(testAdminPassword)
	require.NoError(t, err)
	admin := &store.AdminUser{
		ID:           uuid.New().String(),
		Username:     "counsel",
		PasswordHash: adminHash,
		DisplayName:  "Counsel",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, st.CreateAdminUser(t.Context(), admin))

	server := NewServer(Options{
		Addr:          "127.0.0.1:0",
		Store:         st,
		Manager:       manager,
		Ingester:      process.NewIngester(st, nil),
		Verifier:      verifier,
		WebhookSecret: testWebhookSecret,
	})

	return &testEnv{
		server:   server,
		store:    st,
		verifier: verifier,
		client:   client,
		admin:    admin,
	}
}

func (e *testEnv) clientToken(t *testing.T) string {
	t.Helper()
	token, err := e.verifier.Generate(&auth.Identity{PrincipalID: e.client.ID, Role: auth.RoleClient})
	require.NoError(t, err)
	return token
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	token, err := e.verifier.Generate(&auth.Identity{PrincipalID: e.admin.ID, Role: auth.RoleAdmin})
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, extraHeaders map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func TestClientLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/client/login", "", ClientLoginRequest{
		Email:    "ana@example.com",
		Password: testClientPassword,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[LoginResponse](t, rec)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, env.client.ID, resp.PrincipalID)
	assert.Equal(t, auth.RoleClient, resp.Role)
	assert.Equal(t, "Ana Souza", resp.DisplayName)

	// The issued token works against an authenticated endpoint
	historyRec := env.do(t, http.MethodGet, "/api/chat/history", resp.Token, nil, nil)
	assert.Equal(t, http.StatusOK, historyRec.Code)
}

func TestClientLogin_Rejections(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  ClientLoginRequest
		want int
	}{
		{"wrong password", ClientLoginRequest{Email: "ana@example.com", Password: "nope"}, http.StatusUnauthorized},
		{"unknown email", ClientLoginRequest{Email: "ghost@example.com", Password: "x"}, http.StatusUnauthorized},
		{"missing fields", ClientLoginRequest{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/client/login", "", tt.req, nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAdminLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/login", "", AdminLoginRequest{
		Username: "counsel",
		Password: testAdminPassword,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[LoginResponse](t, rec)
	assert.Equal(t, auth.RoleAdmin, resp.Role)
	assert.Equal(t, env.admin.ID, resp.PrincipalID)
}

func TestChatHistory_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/chat/history", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatHistory_EmptyWithoutConversation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/chat/history", env.clientToken(t), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[HistoryResponse](t, rec)
	assert.Empty(t, resp.ConversationID)
	assert.Empty(t, resp.Messages)
}

func TestChatSendAndHistory(t *testing.T) {
	env := newTestEnv(t)
	token := env.clientToken(t)

	sendRec := env.do(t, http.MethodPost, "/api/chat/send", token, SendRequest{Text: "bom dia"}, nil)
	require.Equal(t, http.StatusCreated, sendRec.Code, sendRec.Body.String())

	sent := decodeBody[SendResponse](t, sendRec)
	require.NotNil(t, sent.Message)
	assert.Equal(t, "bom dia", sent.Message.Body)
	assert.Equal(t, "client", sent.Message.SenderRole)

	histRec := env.do(t, http.MethodGet, "/api/chat/history", token, nil, nil)
	require.Equal(t, http.StatusOK, histRec.Code)

	hist := decodeBody[HistoryResponse](t, histRec)
	require.Len(t, hist.Messages, 1)
	assert.Equal(t, sent.Message.ID, hist.Messages[0].ID)
	assert.Equal(t, sent.Message.ConversationID, hist.ConversationID)
}

func TestChatSend_IdempotencyKeyReplay(t *testing.T) {
	env := newTestEnv(t)
	token := env.clientToken(t)
	headers := map[string]string{"Idempotency-Key": "retry-key-1"}

	first := env.do(t, http.MethodPost, "/api/chat/send", token, SendRequest{Text: "once"}, headers)
	require.Equal(t, http.StatusCreated, first.Code)

	second := env.do(t, http.MethodPost, "/api/chat/send", token, SendRequest{Text: "once"}, headers)
	require.Equal(t, http.StatusOK, second.Code)
	assert.True(t, decodeBody[SendResponse](t, second).Duplicate)

	hist := decodeBody[HistoryResponse](t, env.do(t, http.MethodGet, "/api/chat/history", token, nil, nil))
	assert.Len(t, hist.Messages, 1)
}

func TestChatSend_EmptyText(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/chat/send", env.clientToken(t), SendRequest{Text: "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatScoping(t *testing.T) {
	env := newTestEnv(t)

	t.Run("client cannot read another conversation", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/chat/history?client_id=someone-else", env.clientToken(t), nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin must name a client", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/chat/history", env.adminToken(t), nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("admin reads a named conversation", func(t *testing.T) {
		sendRec := env.do(t, http.MethodPost, "/api/chat/send", env.clientToken(t), SendRequest{Text: "hello"}, nil)
		require.Equal(t, http.StatusCreated, sendRec.Code)

		rec := env.do(t, http.MethodGet, "/api/chat/history?client_id="+env.client.ID, env.adminToken(t), nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[HistoryResponse](t, rec).Messages, 1)
	})
}

func TestAdminSendsIntoClientConversation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/chat/send", env.adminToken(t), SendRequest{
		Text:     "your hearing moved",
		ClientID: env.client.ID,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decodeBody[SendResponse](t, rec)
	require.NotNil(t, resp.Message)
	assert.Equal(t, "admin", resp.Message.SenderRole)
	assert.Equal(t, env.admin.ID, resp.Message.SenderID)

	hist := decodeBody[HistoryResponse](t, env.do(t, http.MethodGet, "/api/chat/history", env.clientToken(t), nil, nil))
	require.Len(t, hist.Messages, 1)
	assert.Equal(t, "your hearing moved", hist.Messages[0].Body)
}

func TestListConversations(t *testing.T) {
	env := newTestEnv(t)

	sendRec := env.do(t, http.MethodPost, "/api/chat/send", env.clientToken(t), SendRequest{Text: "hi"}, nil)
	require.Equal(t, http.StatusCreated, sendRec.Code)

	t.Run("admin sees the thread", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/conversations", env.adminToken(t), nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		convs := decodeBody[[]ConversationResponse](t, rec)
		require.Len(t, convs, 1)
		assert.Equal(t, env.client.ID, convs[0].ClientID)
		assert.Equal(t, "Ana Souza", convs[0].ClientName)
	})

	t.Run("client is forbidden", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/conversations", env.clientToken(t), nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestClientProcessesAndDocuments(t *testing.T) {
	env := newTestEnv(t)

	proc := &store.Process{
		ID:        uuid.New().String(),
		ClientID:  env.client.ID,
		Number:    "0001234-56.2024.8.26.0100",
		Court:     "TJSP",
		Subject:   "Labor claim",
		Status:    "active",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, env.store.CreateProcess(t.Context(), proc))

	doc := &store.Document{
		ID:          uuid.New().String(),
		ClientID:    env.client.ID,
		FileName:    "contract.pdf",
		StoragePath: "client-documents/contract.pdf",
		ContentType: "application/pdf",
		SizeBytes:   2048,
		UploadedBy:  store.RoleClient,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, env.store.SaveDocument(t.Context(), doc))

	base := "/api/clients/" + env.client.ID

	t.Run("client reads own records", func(t *testing.T) {
		procs := decodeBody[[]ProcessResponse](t, env.do(t, http.MethodGet, base+"/processes", env.clientToken(t), nil, nil))
		require.Len(t, procs, 1)
		assert.Equal(t, "0001234-56.2024.8.26.0100", procs[0].Number)

		docs := decodeBody[[]DocumentResponse](t, env.do(t, http.MethodGet, base+"/documents", env.clientToken(t), nil, nil))
		require.Len(t, docs, 1)
		assert.Equal(t, "contract.pdf", docs[0].FileName)
	})

	t.Run("admin reads any client", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, base+"/processes", env.adminToken(t), nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("client cannot read other ids", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/clients/other-client/processes", env.clientToken(t), nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestCreateProcess(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/clients/" + env.client.ID + "/processes"

	t.Run("admin registers a process", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, path, env.adminToken(t), CreateProcessRequest{
			Number:  "0001234-56.2024.8.26.0100",
			Court:   "TJSP",
			Subject: "Labor claim",
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)

		created := decodeBody[ProcessResponse](t, rec)
		assert.Equal(t, "0001234-56.2024.8.26.0100", created.Number)
		assert.Equal(t, "active", created.Status)

		// The client sees the registered process on the read path
		procs := decodeBody[[]ProcessResponse](t, env.do(t, http.MethodGet, path, env.clientToken(t), nil, nil))
		require.Len(t, procs, 1)
		assert.Equal(t, created.ID, procs[0].ID)
	})

	t.Run("duplicate number conflicts", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, path, env.adminToken(t), CreateProcessRequest{
			Number: "0001234-56.2024.8.26.0100",
		}, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("client is forbidden", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, path, env.clientToken(t), CreateProcessRequest{
			Number: "0009999-00.2024.8.26.0100",
		}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing number rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, path, env.adminToken(t), CreateProcessRequest{Number: "   "}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, path, env.adminToken(t), CreateProcessRequest{
			Number: "0005555-00.2024.8.26.0100",
			Status: "pending",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown client rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/clients/no-such-client/processes", env.adminToken(t), CreateProcessRequest{
			Number: "0007777-00.2024.8.26.0100",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUpdateProcessStatus(t *testing.T) {
	env := newTestEnv(t)

	created := decodeBody[ProcessResponse](t, env.do(t, http.MethodPost,
		"/api/clients/"+env.client.ID+"/processes", env.adminToken(t),
		CreateProcessRequest{Number: "0001234-56.2024.8.26.0100"}, nil))

	t.Run("admin archives the process", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/api/processes/"+created.ID+"/status", env.adminToken(t),
			UpdateProcessStatusRequest{Status: "archived"}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		procs, err := env.store.ListProcessesByClient(t.Context(), env.client.ID)
		require.NoError(t, err)
		require.Len(t, procs, 1)
		assert.Equal(t, "archived", procs[0].Status)
	})

	t.Run("unknown process is 404", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/api/processes/no-such-process/status", env.adminToken(t),
			UpdateProcessStatusRequest{Status: "archived"}, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/api/processes/"+created.ID+"/status", env.adminToken(t),
			UpdateProcessStatusRequest{Status: "done"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("client is forbidden", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/api/processes/"+created.ID+"/status", env.clientToken(t),
			UpdateProcessStatusRequest{Status: "suspended"}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestProcessWebhook(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]any{
		"payload": map[string]any{
			"response_data": map[string]any{"code": "proc-99"},
		},
	}

	t.Run("wrong secret", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/webhooks/process", "", payload,
			map[string]string{webhookSecretHeader: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing secret", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/webhooks/process", "", payload, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("stores consultation", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/webhooks/process", "", payload,
			map[string]string{webhookSecretHeader: testWebhookSecret})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeBody[ProcessWebhookResponse](t, rec)
		assert.True(t, resp.Success)
		assert.Equal(t, "proc-99", resp.ProcessNumber)

		stored, err := env.store.GetProcessConsultation(t.Context(), "proc-99")
		require.NoError(t, err)
		assert.Equal(t, process.StatusCompleted, stored.Status)
	})

	t.Run("payload without number", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/webhooks/process", "", map[string]any{"noise": true},
			map[string]string{webhookSecretHeader: testWebhookSecret})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProcessWebhook_DisabledWithoutSecret(t *testing.T) {
	env := newTestEnv(t)
	env.server.webhookSecret = ""

	rec := env.do(t, http.MethodPost, "/api/webhooks/process", "", map[string]any{"code": "x"},
		map[string]string{webhookSecretHeader: ""})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentWebhook(t *testing.T) {
	env := newTestEnv(t)

	body := DocumentWebhookRequest{}
	body.Record.ClientID = env.client.ID
	body.Record.FileName = "petition.pdf"
	body.Record.FilePath = "client-documents/petition.pdf"
	body.Record.ContentType = "application/pdf"
	body.Record.FileSize = 4096
	body.Record.UploadedByAdmin = true

	rec := env.do(t, http.MethodPost, "/api/webhooks/document-upload", "", body,
		map[string]string{webhookSecretHeader: testWebhookSecret})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	docs, err := env.store.ListDocumentsByClient(t.Context(), env.client.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "petition.pdf", docs[0].FileName)
	assert.Equal(t, store.RoleAdmin, docs[0].UploadedBy)
}

func TestDocumentWebhook_UnknownClient(t *testing.T) {
	env := newTestEnv(t)

	body := DocumentWebhookRequest{}
	body.Record.ClientID = "no-such-client"
	body.Record.FileName = "x.pdf"
	body.Record.FilePath = "client-documents/x.pdf"

	rec := env.do(t, http.MethodPost, "/api/webhooks/document-upload", "", body,
		map[string]string{webhookSecretHeader: testWebhookSecret})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
