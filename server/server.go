// Package server relays streamed answers from the genAI service to browser
// clients over WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xhad/notesqa/internal/models"
	"github.com/xhad/notesqa/pkg/queries"
	"github.com/xhad/notesqa/pkg/status"
)

const (
	MessageQuery = "query"
	MessageChunk = "chunk"
	MessageDone  = "done"
	MessageError = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Streamer opens answer streams. *queries.Client implements it.
type Streamer interface {
	OpenStream(ctx context.Context, question string) (*queries.Stream, error)
}

// Recorder archives completed answers.
type Recorder interface {
	Record(ctx context.Context, resp models.QueryResponse) (string, error)
}

type Config struct {
	GenAI    Streamer
	Monitor  *status.Monitor
	Recorder Recorder
	Logger   *zap.Logger
}

type WSServer struct {
	genai    Streamer
	monitor  *status.Monitor
	recorder Recorder
	logger   *zap.Logger
}

func NewWSServer(config Config) (*WSServer, error) {
	if config.GenAI == nil {
		return nil, errors.New("genAI client is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Monitor == nil {
		config.Monitor = status.NewMonitor(config.Logger)
	}

	return &WSServer{
		genai:    config.GenAI,
		monitor:  config.Monitor,
		recorder: config.Recorder,
		logger:   config.Logger.Named("server"),
	}, nil
}

func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *WSServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting WebSocket server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

type healthResponse struct {
	Status   string             `json:"status"`
	Services []models.APIStatus `json:"services"`
}

func (s *WSServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := s.monitor.CheckAll(r.Context())

	resp := healthResponse{Status: "ok", Services: statuses}
	code := http.StatusOK
	if !status.Healthy(statuses) {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Failed to write health response", zap.Error(err))
	}
}

// session is one WebSocket connection. Queries on it run concurrently, so
// writes go through send.
type session struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger
	mu     sync.Mutex
}

func (c *session) send(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug("Error sending message", zap.Error(err))
	}
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	sess := &session{
		id:     id,
		conn:   conn,
		logger: s.logger.With(zap.String("session", id)),
	}
	sess.logger.Info("Client connected")

	// Streams belonging to this connection stop when it closes.
	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		sess.logger.Info("Client disconnected")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.logger.Debug("Error reading message", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			sess.send(Message{Type: MessageError, Content: "invalid message"})
			continue
		}
		if msg.Type != MessageQuery {
			sess.send(Message{Type: MessageError, Content: fmt.Sprintf("unsupported message type %q", msg.Type)})
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			sess.send(Message{Type: MessageError, Content: "question is empty"})
			continue
		}

		wg.Add(1)
		go func(question string) {
			defer wg.Done()
			s.relay(ctx, sess, question)
		}(msg.Content)
	}
}

// relay forwards every chunk of the answer to question, then a done or
// error message.
func (s *WSServer) relay(ctx context.Context, sess *session, question string) {
	stream, err := s.genai.OpenStream(ctx, question)
	if err != nil {
		sess.send(Message{Type: MessageError, Content: err.Error()})
		return
	}
	defer stream.Close()

	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() == nil {
				sess.send(Message{Type: MessageError, Content: err.Error()})
			}
			return
		}
		sess.send(Message{Type: MessageChunk, Data: chunk})
	}

	sess.send(Message{Type: MessageDone})

	if s.recorder == nil {
		return
	}
	data, ok := stream.Complete()
	if !ok {
		return
	}
	resp, err := models.StreamChunk{Type: models.ChunkComplete, Data: data}.Response()
	if err != nil {
		sess.logger.Warn("Failed to decode answer", zap.Error(err))
		return
	}
	if _, err := s.recorder.Record(ctx, *resp); err != nil {
		sess.logger.Warn("Failed to record answer", zap.Error(err))
	}
}
