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

	"github.com/archon-run/archon/internal/config"
	"github.com/archon-run/archon/pkg/models"
)

func loadConfig(path string) (*config.Config, error) {
	if strings.TrimSpace(path) == "" {
		return config.Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// buildRunCmd runs a single task to completion and prints the final answer.
func buildRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Run a single task through the reasoning loop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			rt, err := build(cfg)
			if err != nil {
				return fmt.Errorf("build runtime: %w", err)
			}
			defer rt.cleanup()

			ctx, cancel := signalContext()
			defer cancel()

			answer, err := rt.engine.Run(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "archon.yaml", "Path to YAML/JSON5 configuration file")
	return cmd
}

// buildServeCmd reads tasks line by line from stdin until EOF or
// interruption, printing each answer as it completes.
func buildServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an interactive loop, reading tasks from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			rt, err := build(cfg)
			if err != nil {
				return fmt.Errorf("build runtime: %w", err)
			}
			defer rt.cleanup()

			ctx, cancel := signalContext()
			defer cancel()

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			fmt.Fprintln(out, "archon ready. enter a task, or Ctrl-D to exit.")
			for scanner.Scan() {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				task := strings.TrimSpace(scanner.Text())
				if task == "" {
					continue
				}
				answer, err := rt.engine.Run(ctx, task)
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}
				fmt.Fprintln(out, answer)
			}
			return scanner.Err()
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "archon.yaml", "Path to YAML/JSON5 configuration file")
	return cmd
}

// buildRulesCmd creates the "rules" command group for deterministic rule
// administration (spec §4.2): add, list, rm.
func buildRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage deterministic trigger/response rules",
	}
	cmd.AddCommand(buildRulesAddCmd(), buildRulesListCmd(), buildRulesRmCmd())
	return cmd
}

func buildRulesAddCmd() *cobra.Command {
	var (
		configPath string
		kind       string
		priority   int
	)
	cmd := &cobra.Command{
		Use:   "add [trigger] [response]",
		Short: "Add a rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			rt, err := build(cfg)
			if err != nil {
				return fmt.Errorf("build runtime: %w", err)
			}
			defer rt.cleanup()

			id, err := rt.rules.Add(args[0], models.TriggerKind(kind), args[1], priority)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added rule %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "archon.yaml", "Path to YAML/JSON5 configuration file")
	cmd.Flags().StringVar(&kind, "kind", string(models.TriggerContains), "Trigger kind: exact, contains, regex")
	cmd.Flags().IntVar(&priority, "priority", 0, "Priority (higher wins ties)")
	return cmd
}

func buildRulesListCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			rt, err := build(cfg)
			if err != nil {
				return fmt.Errorf("build runtime: %w", err)
			}
			defer rt.cleanup()

			out := cmd.OutOrStdout()
			rules := rt.rules.All()
			if len(rules) == 0 {
				fmt.Fprintln(out, "No rules.")
				return nil
			}
			for _, r := range rules {
				fmt.Fprintf(out, "%s  [%s, priority %d] %q -> %q\n", r.ID, r.TriggerKind, r.Priority, r.Trigger, r.Response)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "archon.yaml", "Path to YAML/JSON5 configuration file")
	return cmd
}

func buildRulesRmCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Remove a rule by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			rt, err := build(cfg)
			if err != nil {
				return fmt.Errorf("build runtime: %w", err)
			}
			defer rt.cleanup()

			removed, err := rt.rules.Remove(args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("rule %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed rule %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "archon.yaml", "Path to YAML/JSON5 configuration file")
	return cmd
}
