// walink is the terminal client for linking WhatsApp accounts to managed
// instances: it drives the pairing flow against the backend and renders
// the QR artifact to scan.
package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/volxolabs/walink/internal/api"
	"github.com/volxolabs/walink/internal/config"
	"github.com/volxolabs/walink/internal/realtime"
)

type rootOptions struct {
	apiURL    string
	wsURL     string
	transport string
	cfg       *config.Config
}

func (r *rootOptions) prepare() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Flags override the environment.
	if r.apiURL != "" {
		cfg.APIBaseURL = r.apiURL
	}
	if r.wsURL != "" {
		cfg.WSBaseURL = r.wsURL
	}
	if r.transport != "" {
		cfg.Transport = r.transport
	}
	if cfg.WSBaseURL == "" {
		cfg.WSBaseURL = deriveWSURL(cfg.APIBaseURL)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	setLogLevel(cfg.LogLevel)
	r.cfg = cfg
	return nil
}

func (r *rootOptions) client() *api.Client {
	return api.NewClient(r.cfg.APIBaseURL, r.cfg.RequestTimeout())
}

func (r *rootOptions) dialer() realtime.Dialer {
	if r.cfg.Transport == config.TransportSSE {
		return &realtime.SSEDialer{BaseURL: r.cfg.APIBaseURL}
	}
	return &realtime.WebSocketDialer{BaseURL: r.cfg.WSBaseURL}
}

// deriveWSURL maps the REST base onto the websocket scheme.
func deriveWSURL(apiURL string) string {
	switch {
	case strings.HasPrefix(apiURL, "https://"):
		return "wss://" + strings.TrimPrefix(apiURL, "https://")
	case strings.HasPrefix(apiURL, "http://"):
		return "ws://" + strings.TrimPrefix(apiURL, "http://")
	default:
		return apiURL
	}
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "walink",
		Short:         "Link WhatsApp accounts to managed instances",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "backend REST base URL (overrides WALINK_API_URL)")
	rootCmd.PersistentFlags().StringVar(&opts.wsURL, "ws-url", "", "backend websocket base URL (defaults to the api url)")
	rootCmd.PersistentFlags().StringVar(&opts.transport, "transport", "", "realtime transport: websocket or sse")
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return opts.prepare()
	}

	rootCmd.AddCommand(newLinkCmd(opts))
	rootCmd.AddCommand(newInstancesCmd(opts))
	rootCmd.AddCommand(newDisconnectCmd(opts))
	rootCmd.AddCommand(newRestartCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
