package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"openmoose/internal/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE:  runChat,
}

// maxHistoryTurns bounds the history forwarded to the model; older
// turns fall off the front.
const maxHistoryTurns = 40

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("moose %s - type a message, /help for commands, /quit to exit\n", a.cfg.Version)

	var history []types.ConversationTurn
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if done := handleChatCommand(a, line, &history); done {
				return nil
			}
			continue
		}

		msgCtx, msgCancel := context.WithTimeout(ctx, timeout)
		outcome, err := a.orch.Run(msgCtx, line, streamingCallbacks(), history)
		msgCancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println()

		history = append(history,
			types.ConversationTurn{Role: types.RoleUser, Content: line},
			types.ConversationTurn{Role: types.RoleAssistant, Content: outcome.Text},
		)
		if len(history) > maxHistoryTurns {
			history = history[len(history)-maxHistoryTurns:]
		}
	}
}

// handleChatCommand processes /-prefixed commands; returns true when
// the session should end.
func handleChatCommand(a *app, line string, history *[]types.ConversationTurn) bool {
	switch cmd := strings.Fields(line)[0]; cmd {
	case "/quit", "/exit":
		return true
	case "/clear":
		*history = nil
		fmt.Println("history cleared")
	case "/skills":
		for _, route := range a.router.Routes() {
			fmt.Printf("  %-12s %s\n", route.Name, route.Description)
		}
	case "/help":
		fmt.Println("  /skills  list registered skills")
		fmt.Println("  /clear   clear conversation history")
		fmt.Println("  /quit    exit")
	default:
		fmt.Printf("unknown command %s (try /help)\n", cmd)
	}
	return false
}
