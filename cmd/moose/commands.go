package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"openmoose/internal/config"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List registered skills and their example utterances",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, route := range a.router.Routes() {
			trust := ""
			if route.RequiresElevatedTrust {
				trust = " (elevated trust)"
			}
			fmt.Printf("%s%s\n  %s\n", route.Name, trust, route.Description)
			for _, example := range route.Examples {
				fmt.Printf("    e.g. %q\n", example)
			}
		}
		return nil
	},
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect long-term memory",
}

var memoryRecallCmd = &cobra.Command{
	Use:   "recall [query]",
	Short: "Recall stored facts relevant to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		facts, err := a.memory.Recall(ctx, strings.Join(args, " "), a.cfg.Memory.RecallLimit)
		if err != nil {
			return err
		}
		if len(facts) == 0 {
			fmt.Println("nothing remembered about that")
			return nil
		}
		for _, fact := range facts {
			fmt.Printf("- %s\n", fact)
		}
		return nil
	},
}

var memoryStoreCmd = &cobra.Command{
	Use:   "store [fact]",
	Short: "Store a fact in long-term memory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := a.memory.Store(ctx, strings.Join(args, " ")); err != nil {
			return err
		}
		fmt.Println("stored")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config already exists at %s", configPath)
		}
		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", configPath)
		return nil
	},
}

func init() {
	memoryCmd.AddCommand(memoryRecallCmd)
	memoryCmd.AddCommand(memoryStoreCmd)
	configCmd.AddCommand(configInitCmd)
}
