package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/notesqa/internal/models"
	"github.com/xhad/notesqa/pkg/queries"
	"github.com/xhad/notesqa/pkg/status"
)

func genAIServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/queries/streams" {
			http.NotFound(w, r)
			return
		}

		var req models.QueryRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		if req.Question == "fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"context\",\"context\":[\"note 1\"]}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"answer\",\"content\":\"Hello\"}\n\n")
		fmt.Fprintf(w, "data: {\"type\":\"complete\",\"data\":{\"question\":%q,\"response\":\"Hello\",\"context\":[\"note 1\"],\"tokens\":3}}\n\n", req.Question)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fakeRecorder struct {
	recorded chan models.QueryResponse
}

func (f *fakeRecorder) Record(_ context.Context, resp models.QueryResponse) (string, error) {
	f.recorded <- resp
	return "id", nil
}

type fakeChecker struct {
	report models.HealthReport
}

func (f fakeChecker) CheckHealth(context.Context) models.HealthReport {
	return f.report
}

func newTestServer(t *testing.T, config Config) *httptest.Server {
	t.Helper()

	genai, err := queries.NewWithConfig(queries.Config{BaseURL: genAIServer(t).URL})
	require.NoError(t, err)
	config.GenAI = genai

	s, err := NewWSServer(config)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

type received struct {
	Type    string             `json:"type"`
	Content string             `json:"content"`
	Data    models.StreamChunk `json:"data"`
}

func readUntilDone(t *testing.T, conn *websocket.Conn) []received {
	t.Helper()

	var msgs []received
	for {
		var msg received
		require.NoError(t, conn.ReadJSON(&msg))
		msgs = append(msgs, msg)
		if msg.Type == MessageDone || msg.Type == MessageError {
			return msgs
		}
	}
}

func TestRelay(t *testing.T) {
	recorder := &fakeRecorder{recorded: make(chan models.QueryResponse, 1)}
	srv := newTestServer(t, Config{Recorder: recorder})
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageQuery, Content: "What is in my notes?"}))

	msgs := readUntilDone(t, conn)
	require.Len(t, msgs, 4)
	assert.Equal(t, MessageChunk, msgs[0].Type)
	assert.Equal(t, models.ChunkContext, msgs[0].Data.Type)
	assert.Equal(t, []string{"note 1"}, msgs[0].Data.Context)
	assert.Equal(t, "Hello", msgs[1].Data.Content)
	assert.Equal(t, models.ChunkComplete, msgs[2].Data.Type)
	assert.Equal(t, MessageDone, msgs[3].Type)

	select {
	case resp := <-recorder.recorded:
		assert.Equal(t, "What is in my notes?", resp.Question)
		assert.Equal(t, "Hello", resp.Response)
		assert.Equal(t, 3, resp.Tokens)
	case <-time.After(5 * time.Second):
		t.Fatal("answer was not recorded")
	}
}

func TestRelayUpstreamFailure(t *testing.T) {
	srv := newTestServer(t, Config{})
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageQuery, Content: "fail"}))

	msgs := readUntilDone(t, conn)
	require.Len(t, msgs, 1)
	assert.Equal(t, MessageError, msgs[0].Type)
	assert.Equal(t, "HTTP error! status: 500", msgs[0].Content)
}

func TestRelayRejectsBadMessages(t *testing.T) {
	srv := newTestServer(t, Config{})
	conn := dial(t, srv)

	tests := []struct {
		name    string
		payload string
		content string
	}{
		{"not json", "hello", "invalid message"},
		{"wrong type", `{"type":"ping"}`, `unsupported message type "ping"`},
		{"empty question", `{"type":"query","content":"  "}`, "question is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.payload)))

			var msg received
			require.NoError(t, conn.ReadJSON(&msg))
			assert.Equal(t, MessageError, msg.Type)
			assert.Equal(t, tt.content, msg.Content)
		})
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		report     models.HealthReport
		wantCode   int
		wantStatus string
	}{
		{"healthy", models.HealthReport{IsHealthy: true}, http.StatusOK, "ok"},
		{"degraded", models.HealthReport{Error: "connection refused"}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor := status.NewMonitor(nil, status.Target{Name: "genAI", Checker: fakeChecker{report: tt.report}})
			srv := newTestServer(t, Config{Monitor: monitor})

			resp, err := http.Get(srv.URL + "/health")
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantCode, resp.StatusCode)

			var body healthResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantStatus, body.Status)
			require.Len(t, body.Services, 1)
			assert.Equal(t, "genAI", body.Services[0].Name)
			assert.Equal(t, tt.report.Error, body.Services[0].Error)
		})
	}
}

func TestNewWSServerRequiresGenAI(t *testing.T) {
	_, err := NewWSServer(Config{})
	assert.Error(t, err)
}
