package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/auth"
	"chat-relay/repositories"
	"chat-relay/services"
	"chat-relay/storage"
)

// pngBytes is a minimal PNG signature, enough for content sniffing.
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func newTestServer(t *testing.T) (*httptest.Server, repositories.IMessageRepository) {
	t.Helper()
	req := require.New(t)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	messageRepository := repositories.NewMessageRepository(db, log, nil)
	attachments, err := storage.NewDiskStore(t.TempDir(), "http://localhost:8080", log)
	req.NoError(err)

	api := NewAPI(log,
		services.NewAuthService(repositories.NewUserRepository(db), 1*time.Hour),
		services.NewHistoryService(messageRepository),
		attachments,
	)

	server := httptest.NewServer(api.Routes(http.NotFoundHandler()))
	t.Cleanup(server.Close)
	return server, messageRepository
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAPI_Register_And_Login(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t)

	// When a new account registers
	resp := postJSON(t, server.URL+"/auth/register",
		`{"email":"alice@example.com","username":"Alice","password":"ComplexPass123!"}`)
	req.Equal(http.StatusCreated, resp.StatusCode)

	var body map[string]string
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.NotEmpty(body["token"])

	// Then the same email cannot register twice
	resp = postJSON(t, server.URL+"/auth/register",
		`{"email":"alice@example.com","username":"Imposter","password":"ComplexPass123!"}`)
	req.Equal(http.StatusConflict, resp.StatusCode)

	// And login works with the right password only
	resp = postJSON(t, server.URL+"/auth/login",
		`{"email":"alice@example.com","password":"ComplexPass123!"}`)
	req.Equal(http.StatusOK, resp.StatusCode)

	resp = postJSON(t, server.URL+"/auth/login",
		`{"email":"alice@example.com","password":"WrongPassword1!"}`)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_Register_Rejects_Weak_Password(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/auth/register",
		`{"email":"bob@example.com","username":"Bob","password":"weak"}`)
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_History_Requires_Matching_Token(t *testing.T) {
	req := require.New(t)
	server, messageRepository := newTestServer(t)

	// Given a stored conversation
	at := time.Now().UTC()
	first := repositories.DiskMessage{
		ID: uuid.New(), Sender: "alice", Receiver: "bob", Kind: "text", Content: "hi Bob", At: at,
	}
	second := repositories.DiskMessage{
		ID: uuid.New(), Sender: "bob", Receiver: "alice", Kind: "text", Content: "hi Alice", At: at.Add(time.Minute),
	}
	req.NoError(messageRepository.StoreMessage(first))
	req.NoError(messageRepository.StoreMessage(second))

	token, err := auth.GenerateToken("alice", "Alice", []string{"user"}, 1*time.Hour)
	req.NoError(err)

	// When Alice fetches her own history
	request, _ := http.NewRequest(http.MethodGet, server.URL+"/messages/alice", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(request)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	// Then messages come back oldest first
	var body historyResponse
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Len(body.Messages, 2)
	req.Equal("hi Bob", body.Messages[0].Content)
	req.Equal("hi Alice", body.Messages[1].Content)
	req.Nil(body.NextCursor)

	// And her token opens nobody else's history
	request, _ = http.NewRequest(http.MethodGet, server.URL+"/messages/bob", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(request)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusForbidden, resp.StatusCode)

	// And no token means no history at all
	resp, err = http.Get(server.URL + "/messages/alice")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func uploadRequest(t *testing.T, url, token string, content []byte) *http.Response {
	t.Helper()
	req := require.New(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "picture.png")
	req.NoError(err)
	_, err = part.Write(content)
	req.NoError(err)
	req.NoError(writer.Close())

	request, err := http.NewRequest(http.MethodPost, url+"/upload", &buf)
	req.NoError(err)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	request.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(request)
	req.NoError(err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAPI_Upload_Accepts_Images_Only(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t)

	token, err := auth.GenerateToken("alice", "Alice", []string{"user"}, 1*time.Hour)
	req.NoError(err)

	// When an image is uploaded, its public URL comes back
	resp := uploadRequest(t, server.URL, token, pngBytes)
	req.Equal(http.StatusCreated, resp.StatusCode)

	var body map[string]string
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Contains(body["imageUrl"], "/uploads/")
	req.True(strings.HasSuffix(body["imageUrl"], ".png"), fmt.Sprintf("unexpected url %q", body["imageUrl"]))

	// The claimed filename does not matter: the bytes are sniffed
	resp = uploadRequest(t, server.URL, token, []byte("#!/bin/sh\nrm -rf /\n"))
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}
