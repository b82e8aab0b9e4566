package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xhad/notesqa/internal/models"
	"github.com/xhad/notesqa/pkg/history"
	"github.com/xhad/notesqa/pkg/llm"
	"github.com/xhad/notesqa/pkg/notes"
	"github.com/xhad/notesqa/pkg/processor"
	"github.com/xhad/notesqa/pkg/queries"
	"github.com/xhad/notesqa/pkg/render"
	"github.com/xhad/notesqa/pkg/status"
	"github.com/xhad/notesqa/pkg/store"
	"github.com/xhad/notesqa/server"
)

var (
	noStream      bool
	pageSize      int
	watchInterval time.Duration
	serveAddr     string
)

var noteCmd = &cobra.Command{
	Use:   "note [id]",
	Short: "Show a single note",
	Args:  cobra.ExactArgs(1),
	RunE:  showNote,
}

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "List notes",
	Args:  cobra.NoArgs,
	RunE:  listNotes,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about your notes",
	Long: `Asks the genAI service a question and prints the answer as it streams in.

Run without a question to start an interactive session (type 'exit' to quit).`,
	RunE: ask,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the health of the notes and genAI services",
	Args:  cobra.NoArgs,
	RunE:  checkStatus,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Relay streamed answers to browsers over WebSocket",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Search previously answered questions",
}

var historySearchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Find past answers similar to text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  searchHistory,
}

func newNotesService() (*notes.Service, error) {
	return notes.NewWithConfig(notes.Config{
		BaseURL:   cfg.API.NotesURL,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Logger:    logger,
	})
}

func newGenAIClient() (*queries.Client, error) {
	return queries.NewWithConfig(queries.Config{
		BaseURL:   cfg.API.GenAIURL,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Logger:    logger,
	})
}

func newMonitor() (*status.Monitor, error) {
	notesService, err := newNotesService()
	if err != nil {
		return nil, err
	}
	genai, err := newGenAIClient()
	if err != nil {
		return nil, err
	}
	return status.NewMonitor(logger,
		status.Target{Name: "Notes API", Checker: notesService},
		status.Target{Name: "GenAI API", Checker: genai},
	), nil
}

// newRecorder returns nil when no database is configured.
func newRecorder(ctx context.Context) (*history.Recorder, error) {
	if cfg.Database.URL == "" {
		return nil, nil
	}

	historyStore, err := store.NewWithConfig(ctx, store.HistoryStoreConfig{
		ConnString:  cfg.Database.URL,
		TableName:   cfg.Database.TableName,
		VectorDim:   cfg.Database.VectorDim,
		SearchLimit: cfg.Database.SearchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history store: %w", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   cfg.Embedder.Model,
		BaseURL: cfg.Embedder.BaseURL,
	})
	if err != nil {
		historyStore.Close()
		return nil, err
	}

	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
	})

	return history.NewRecorder(&p, embedder, historyStore, logger), nil
}

func showNote(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid note id %q", args[0])
	}

	service, err := newNotesService()
	if err != nil {
		return err
	}

	stop := spin(" Loading note...")
	result := service.LoadNote(cmd.Context(), id)
	stop()

	switch r := result.(type) {
	case notes.Success:
		color.New(color.FgCyan, color.Bold).Println(render.Title(r.Data))
		if r.Data.UpdatedAt != "" {
			color.New(color.Faint).Printf("Updated %s\n", r.Data.UpdatedAt)
		}
		fmt.Printf("\n%s\n", render.Text(r.Data))
	case notes.Failure:
		if r.Err.Details != nil {
			logger.Debug("Note load failed", zap.Any("details", r.Err.Details))
		}
		return fmt.Errorf("%s (%s)", r.Err.Message, r.Err.Type)
	}
	return nil
}

func listNotes(cmd *cobra.Command, args []string) error {
	size := pageSize
	if size <= 0 {
		size = cfg.UI.PageSize
	}

	service, err := newNotesService()
	if err != nil {
		return err
	}

	stop := spin(" Loading notes...")
	page, err := service.ListNotes(cmd.Context(), size)
	stop()
	if err != nil {
		return err
	}

	if len(page.Items) == 0 {
		color.Yellow("No notes found")
		return nil
	}

	idColor := color.New(color.FgGreen).SprintfFunc()
	for _, note := range page.Items {
		fmt.Printf("%s  %s\n", idColor("#%-4d", note.ID), render.Title(note))
		if excerpt := render.Excerpt(render.Text(note), 72); excerpt != "" {
			color.New(color.Faint).Printf("       %s\n", excerpt)
		}
	}
	color.Cyan("\nShowing %d of %d notes", len(page.Items), page.Total)
	return nil
}

func ask(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	genai, err := newGenAIClient()
	if err != nil {
		return err
	}

	recorder, err := newRecorder(ctx)
	if err != nil {
		color.Yellow("History disabled: %v", err)
	}
	if recorder != nil {
		defer recorder.Close()
	}

	if len(args) > 0 {
		return answer(ctx, genai, recorder, strings.Join(args, " "))
	}

	color.Cyan("\nAsk about your notes (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()

	for ctx.Err() == nil {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.ToLower(question) == "exit" {
			break
		}

		if err := answer(ctx, genai, recorder, question); err != nil {
			color.Red("Error: %v", err)
		}
	}
	return nil
}

// answer prints the reply to question and archives it when recorder is set.
func answer(ctx context.Context, genai *queries.Client, recorder *history.Recorder, question string) error {
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	if noStream {
		stop := spin(" Generating response...")
		resp, err := genai.SubmitQuery(ctx, question)
		stop()
		if err != nil {
			return err
		}
		assistantPrompt("\nAssistant: ")
		fmt.Println(resp.Response)
		printSources(resp.Context)
		record(ctx, recorder, *resp)
		return nil
	}

	stop := spin(" Thinking...")
	defer stop()

	var (
		started bool
		final   *models.QueryResponse
		sources []string
	)
	err := genai.SubmitQueryStream(ctx, question, queries.StreamHandlers{
		OnChunk: func(chunk models.StreamChunk) {
			switch chunk.Type {
			case models.ChunkContext:
				sources = chunk.Context
			case models.ChunkAnswer:
				if !started {
					stop()
					assistantPrompt("\nAssistant: ")
					started = true
				}
				fmt.Print(chunk.Content)
			case models.ChunkError:
				stop()
				color.Red("\n%s", chunk.Content)
			}
		},
		OnComplete: func(data json.RawMessage) {
			resp, err := models.StreamChunk{Type: models.ChunkComplete, Data: data}.Response()
			if err != nil {
				logger.Warn("Failed to decode answer", zap.Error(err))
				return
			}
			final = resp
		},
	})
	stop()
	if started {
		fmt.Println()
	}
	if err != nil {
		return err
	}

	if final != nil {
		if !started && final.Response != "" {
			assistantPrompt("\nAssistant: ")
			fmt.Println(final.Response)
		}
		if len(final.Context) > 0 {
			sources = final.Context
		}
		printSources(sources)
		record(ctx, recorder, *final)
	}
	return nil
}

func printSources(sources []string) {
	if len(sources) == 0 || !verbose {
		return
	}
	color.New(color.Faint).Printf("\nSources (%d):\n", len(sources))
	for _, s := range sources {
		color.New(color.Faint).Printf("  • %s\n", render.Excerpt(s, 72))
	}
}

func record(ctx context.Context, recorder *history.Recorder, resp models.QueryResponse) {
	if recorder == nil {
		return
	}
	if _, err := recorder.Record(ctx, resp); err != nil {
		logger.Warn("Failed to record answer", zap.Error(err))
	}
}

func checkStatus(cmd *cobra.Command, args []string) error {
	monitor, err := newMonitor()
	if err != nil {
		return err
	}

	if watchInterval > 0 {
		err := monitor.Watch(cmd.Context(), watchInterval, func(statuses []models.APIStatus) {
			color.Cyan("\n%s", time.Now().Format(time.TimeOnly))
			printStatuses(statuses)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	stop := spin(" Checking services...")
	statuses := monitor.CheckAll(cmd.Context())
	stop()

	printStatuses(statuses)
	if !status.Healthy(statuses) {
		return errors.New("one or more services are unhealthy")
	}
	return nil
}

func printStatuses(statuses []models.APIStatus) {
	for _, s := range statuses {
		if s.IsHealthy {
			color.Green("✓ %-10s %s", s.Name, s.ResponseTime.Round(time.Millisecond))
			continue
		}
		color.Red("✗ %-10s %s", s.Name, s.Error)
	}
}

func serve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	genai, err := newGenAIClient()
	if err != nil {
		return err
	}
	monitor, err := newMonitor()
	if err != nil {
		return err
	}

	config := server.Config{
		GenAI:   genai,
		Monitor: monitor,
		Logger:  logger,
	}

	recorder, err := newRecorder(ctx)
	if err != nil {
		logger.Warn("History disabled", zap.Error(err))
	}
	if recorder != nil {
		defer recorder.Close()
		config.Recorder = recorder
	}

	s, err := server.NewWSServer(config)
	if err != nil {
		return err
	}

	color.Cyan("Relaying answers on %s (ws path /ws)", addr)
	return s.Run(ctx, addr)
}

func searchHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if cfg.Database.URL == "" {
		return errors.New("history search needs database.url (or DATABASE_URL) to be set")
	}

	recorder, err := newRecorder(ctx)
	if err != nil {
		return err
	}
	defer recorder.Close()

	stop := spin(" Searching history...")
	matches, err := recorder.Search(ctx, strings.Join(args, " "), cfg.Database.SearchLimit)
	stop()
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		color.Yellow("No matching answers")
		return nil
	}

	for i, m := range matches {
		color.New(color.FgGreen).Printf("%d. %s", i+1, m.Question)
		color.New(color.Faint).Printf("  (distance %.3f, %s)\n", m.Distance, m.CreatedAt.Format(time.DateOnly))
		fmt.Printf("   %s\n", render.Excerpt(m.Chunk, 160))
	}
	return nil
}
