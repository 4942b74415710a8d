package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/memohai/confidant/internal/auth"
	"github.com/memohai/confidant/internal/config"
	"github.com/memohai/confidant/internal/logger"
	"github.com/memohai/confidant/internal/version"
)

type cliOptions struct {
	configPath string
	apiBaseURL string
	jwtToken   string
	chatID     string
	timeout    time.Duration
	asJSON     bool
}

func main() {
	if err := buildRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCommand() *cobra.Command {
	var opts cliOptions
	defaultConfig := os.Getenv("CONFIG_PATH")
	if strings.TrimSpace(defaultConfig) == "" {
		defaultConfig = config.DefaultConfigPath
	}

	root := &cobra.Command{
		Use:   "confidant",
		Short: "Inspect and maintain the memory of a running confidant server",
		Long: strings.TrimSpace(`confidant talks to the admin API of a running server.

Commands are scoped to one chat. A token is minted from the configured JWT
secret unless --token is given.`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", defaultConfig, "Path to config.toml")
	flags.StringVar(&opts.apiBaseURL, "server", "", "API server base URL (e.g. http://127.0.0.1:8080)")
	flags.StringVar(&opts.jwtToken, "token", "", "JWT token (optional)")
	flags.StringVarP(&opts.chatID, "chat", "c", "", "Chat ID")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")
	flags.BoolVar(&opts.asJSON, "json", false, "Print raw JSON responses")

	root.AddCommand(newSearchCommand(&opts))
	root.AddCommand(newRecentCommand(&opts))
	root.AddCommand(newSaveCommand(&opts))
	root.AddCommand(newForgetCommand(&opts))
	root.AddCommand(newVersionCommand())
	return root
}

func newSearchCommand(opts *cliOptions) *cobra.Command {
	var (
		topK     int
		maxChars int
		minScore float64
	)
	cmd := &cobra.Command{
		Use:     "search <query>",
		Short:   "Show the history the bot would recall for a message",
		Example: `  confidant search --chat 42 "I could not sleep again"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClientFromOptions(opts)
			if err != nil {
				return err
			}
			req := searchRequest{Query: strings.Join(args, " "), TopK: topK, MaxChars: maxChars}
			if cmd.Flags().Changed("min-score") {
				req.MinScore = &minScore
			}
			list, err := client.Search(cmd.Context(), opts.chatID, req)
			if err != nil {
				return err
			}
			return printList(cmd.OutOrStdout(), list, opts.asJSON)
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "Maximum turns to recall (server default when 0)")
	cmd.Flags().IntVar(&maxChars, "max-chars", 0, "Character budget (server default when 0)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Similarity threshold")
	return cmd
}

func newRecentCommand(opts *cliOptions) *cobra.Command {
	var (
		limit    int
		userOnly bool
	)
	cmd := &cobra.Command{
		Use:     "recent",
		Short:   "List the newest turns of a chat",
		Example: "  confidant recent --chat 42 --limit 5 --user",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClientFromOptions(opts)
			if err != nil {
				return err
			}
			list, err := client.Recent(cmd.Context(), opts.chatID, limit, userOnly)
			if err != nil {
				return err
			}
			return printList(cmd.OutOrStdout(), list, opts.asJSON)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum turns")
	cmd.Flags().BoolVar(&userOnly, "user", false, "Only user turns")
	return cmd
}

func newSaveCommand(opts *cliOptions) *cobra.Command {
	var (
		role   string
		userID string
	)
	cmd := &cobra.Command{
		Use:     "save <text>",
		Short:   "Store one turn in a chat's memory",
		Example: `  confidant save --chat 42 --role assistant "We talked about sleep."`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClientFromOptions(opts)
			if err != nil {
				return err
			}
			saved, err := client.Save(cmd.Context(), opts.chatID, saveRequest{
				UserID: userID,
				Text:   strings.Join(args, " "),
				Role:   role,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", saved.TurnID)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "user", "Turn role (user or assistant)")
	cmd.Flags().StringVar(&userID, "user-id", "", "Author of the turn (token subject when empty)")
	return cmd
}

func newForgetCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "forget",
		Short:   "Delete every stored turn of a chat",
		Example: "  confidant forget --chat 42",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClientFromOptions(opts)
			if err != nil {
				return err
			}
			result, err := client.Clear(cmd.Context(), opts.chatID)
			if err != nil {
				return err
			}
			if !result.OK {
				return fmt.Errorf("clear failed for chat %s", opts.chatID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d turns\n", result.Deleted)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Confidant CLI %s\n", version.GetInfo())
		},
	}
}

func newClientFromOptions(opts *cliOptions) (*apiClient, error) {
	if strings.TrimSpace(opts.chatID) == "" {
		return nil, fmt.Errorf("--chat is required")
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	baseURL := strings.TrimSpace(opts.apiBaseURL)
	if baseURL == "" {
		baseURL = defaultAPIBaseURL(cfg.Server.Addr)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("api url is required")
	}

	token := strings.TrimSpace(opts.jwtToken)
	if token == "" {
		if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
			return nil, fmt.Errorf("no --token given and auth.jwt_secret is not configured")
		}
		token, _, err = auth.GenerateToken("cli", cfg.Auth.JWTSecret, 10*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("mint token: %w", err)
		}
	}
	return newAPIClient(baseURL, token, opts.timeout), nil
}

func normalizeBaseURL(value string) string {
	return strings.TrimRight(strings.TrimSpace(value), "/")
}

func defaultAPIBaseURL(addr string) string {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return normalizeBaseURL(trimmed)
	}
	if strings.HasPrefix(trimmed, ":") {
		return "http://127.0.0.1" + trimmed
	}
	return "http://" + trimmed
}
