package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	cfgPkg "github.com/xhad/notesqa/pkg/config"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *cfgPkg.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "notesqa",
	Short: "Read notes and ask questions about them",
	Long: `notesqa is a terminal client for the notes and genAI services.

It loads notes, streams answers to questions about them, reports the health
of both services and can relay streamed answers to browsers over WebSocket.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = cfgPkg.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				msgs = append(msgs, e.Error())
			}
			return fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	askCmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the whole answer instead of streaming it")
	notesCmd.Flags().IntVar(&pageSize, "size", 0, "Number of notes to list (default from config)")
	statusCmd.Flags().DurationVar(&watchInterval, "watch", 0, "Re-check every interval until interrupted")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (default from config)")

	historyCmd.AddCommand(historySearchCmd)
	rootCmd.AddCommand(noteCmd, notesCmd, askCmd, statusCmd, serveCmd, historyCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWriter(os.Stderr),
	)
}

// spin shows a spinner until the returned stop function is called.
func spin(description string) (stop func()) {
	bar := getSpinner(description)
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
		})
	}
}
