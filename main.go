package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-client/config"
	"library-client/library"
	"library-client/logging"
)

// readPassword securely reads a password with masking
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		envFile    string
		apiURL     string
	)

	cmd := &cobra.Command{
		Use:   "library-client",
		Short: "Terminal client for the library management API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, envFile)
			if err != nil {
				return err
			}
			if apiURL != "" {
				cfg.API.BaseURL = apiURL
			}
			log := logging.New(cfg.LogLevel, os.Stderr)
			slog.SetDefault(log)
			return runShell(cmd.Context(), cfg, log)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to YAML config")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "path to dotenv file")
	cmd.Flags().StringVar(&apiURL, "api", "", "API base URL (overrides config)")
	return cmd
}

func runShell(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	client := library.NewClient(cfg.API.BaseURL, library.WithClientLogger(log))
	session := library.NewSession()

	sh := newShell(os.Stdin, os.Stdout)
	if term.IsTerminal(int(syscall.Stdin)) {
		sh.readPassword = readPassword
	}

	app := library.NewApp(client, session, library.AppOptions{
		ToastDuration:    cfg.UI.ToastDuration,
		RegisterRedirect: cfg.UI.RegisterRedirectDelay,
		Confirmer:        library.ConfirmFunc(sh.confirm),
		Logger:           log,
	})
	defer app.Close()

	log.Debug("starting shell", slog.String("api", cfg.API.BaseURL))
	return sh.run(ctx, app)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
