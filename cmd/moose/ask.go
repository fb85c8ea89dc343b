package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"openmoose/internal/orchestrator"
)

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Answer a single message and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	message := strings.Join(args, " ")
	logger.Debug("processing message", zap.String("input", message))

	outcome, err := a.orch.Run(ctx, message, streamingCallbacks(), nil)
	if err != nil {
		return err
	}
	fmt.Println()

	logger.Debug("pipeline finished",
		zap.String("provenance", string(outcome.Provenance)),
		zap.String("skill", outcome.SkillName))
	return nil
}

// streamingCallbacks prints deltas as they arrive and tool activity in
// verbose mode.
func streamingCallbacks() orchestrator.Callbacks {
	return orchestrator.Callbacks{
		OnDelta: func(text string) {
			fmt.Print(text)
		},
		OnToolCall: func(name string, args map[string]any) {
			if verbose {
				fmt.Printf("\n[tool: %s]\n", name)
			}
		},
		OnToolResult: func(name string, success bool, errText string) {
			if verbose && !success {
				fmt.Printf("\n[tool %s failed: %s]\n", name, errText)
			}
		},
	}
}
