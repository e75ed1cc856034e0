package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atelierhq/roomora-backend/internal/conversation"
	"github.com/atelierhq/roomora-backend/internal/pkg/faults"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
)

func testClient(t *testing.T, baseURL string) Client {
	t.Helper()
	t.Setenv("DESIGN_MODEL_BASE_URL", baseURL)
	t.Setenv("DESIGN_MODEL_API_KEY", "test-key")
	t.Setenv("DESIGN_MODEL_MAX_RETRIES", "0")
	log, err := logger.New("development")
	require.NoError(t, err)
	c, err := NewClient(log)
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresConfig(t *testing.T) {
	t.Setenv("DESIGN_MODEL_BASE_URL", "")
	t.Setenv("DESIGN_MODEL_API_KEY", "")
	log, err := logger.New("development")
	require.NoError(t, err)
	_, err = NewClient(log)
	require.Error(t, err)
}

func TestGenerateDesign(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/designs/generate", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.NotEmpty(t, body["prompt"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"image_url": "https://cdn/designs/1.png",
			"summary":   "scandinavian refresh",
		})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	art, err := c.GenerateDesign(context.Background(), GenerateDesignRequest{
		Prompt:        "redesign",
		RoomPhotoURLs: []string{"https://photos/a.jpg"},
	})
	require.NoError(t, err)
	require.Equal(t, "https://cdn/designs/1.png", art.ImageURL)
}

func TestStatusCodeClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   string
	}{
		{http.StatusTooManyRequests, faults.TypeTransientProvider},
		{http.StatusBadGateway, faults.TypeTransientProvider},
		{http.StatusBadRequest, faults.TypeValidation},
		{http.StatusUnprocessableEntity, faults.TypeValidation},
		{http.StatusForbidden, faults.TypePermanentProvider},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))
		c := testClient(t, srv.URL)

		_, err := c.ExtractItems(context.Background(), "list items", "https://cdn/final.png")
		require.Error(t, err, "status %d", tc.status)
		cls, ok := faults.Classify(err)
		require.True(t, ok, "status %d must classify, got %v", tc.status, err)
		require.Equal(t, tc.kind, cls.Kind, "status %d", tc.status)
		srv.Close()
	}
}

func TestPostStopsRetryingNonRetryable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	t.Setenv("DESIGN_MODEL_BASE_URL", srv.URL)
	t.Setenv("DESIGN_MODEL_API_KEY", "test-key")
	t.Setenv("DESIGN_MODEL_MAX_RETRIES", "3")
	log, err := logger.New("development")
	require.NoError(t, err)
	c, err := NewClient(log)
	require.NoError(t, err)

	_, err = c.ExtractItems(context.Background(), "p", "img")
	require.Error(t, err)
	require.EqualValues(t, 1, calls.Load(), "validation failures must not be retried")
}

func TestContinueDecodesReply(t *testing.T) {
	img := []byte{0x89, 0x50, 0x4e, 0x47}
	token := []byte{0x00, 0xff, 0x10}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/designs/converse", r.URL.Path)
		var body struct {
			History []wireTurn `json:"history"`
			Parts   []wirePart `json:"parts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.History, 2)
		require.Equal(t, "user", body.History[0].Role)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"text": "done",
			"images": []map[string]string{
				{"data": base64.StdEncoding.EncodeToString(img), "media_type": "image/png"},
			},
			"continuation_token": base64.StdEncoding.EncodeToString(token),
		})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	history := []conversation.Turn{
		{Role: conversation.RoleUser, Parts: []conversation.Part{{Text: "hi"}}},
		{Role: conversation.RoleModel, Parts: []conversation.Part{{Text: "hello"}}},
	}
	reply, err := c.Continue(context.Background(), history, []conversation.Part{{Text: "edit"}})
	require.NoError(t, err)
	require.Equal(t, conversation.RoleModel, reply.Role)

	var gotImage, gotToken bool
	for _, p := range reply.Parts {
		if p.IsImage() {
			gotImage = true
			require.Equal(t, img, p.Image)
			require.Equal(t, "image/png", p.MediaType)
		}
		if p.IsToken() {
			gotToken = true
			require.Equal(t, token, p.Token)
		}
	}
	require.True(t, gotImage, "image part missing")
	require.True(t, gotToken, "token part missing")
}
