// Package main provides the creatorfeed CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/gauthierbraillon/creatorfeed/internal/aggregator"
	"github.com/gauthierbraillon/creatorfeed/internal/app"
	"github.com/gauthierbraillon/creatorfeed/internal/config"
	"github.com/gauthierbraillon/creatorfeed/internal/display"
	"github.com/gauthierbraillon/creatorfeed/internal/logging"
	"github.com/gauthierbraillon/creatorfeed/internal/server"
	"github.com/gauthierbraillon/creatorfeed/pkg/browser"
	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

const (
	feedTimeout     = 30 * time.Second
	callbackTimeout = 5 * time.Minute
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the root command for creatorfeed CLI.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "creatorfeed",
		Short:        "Aggregate a creator's posts from YouTube, Instagram, Facebook and TikTok",
		Long:         "Creatorfeed connects a creator's platform accounts and merges their recent posts into one feed.",
		Version:      buildVersion(),
		SilenceUsage: true,
	}

	rootCmd.SetVersionTemplate("creatorfeed version {{.Version}}\n")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides config")

	rootCmd.AddCommand(newConnectCmd())
	rootCmd.AddCommand(newFeedCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newUpgradeTokenCmd())
	rootCmd.AddCommand(newDisconnectCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// loadApp reads the configuration and wires the adapters. Diagnostics are
// logged to the command's stderr.
func loadApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load(config.Dir())
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return app.New(cfg, app.WithLogger(logger)), nil
}

func parsePlatformArg(name string) (oauth.Platform, error) {
	p, err := oauth.ParsePlatform(name)
	if err != nil {
		return "", fmt.Errorf("invalid platform %q: must be one of youtube, instagram, facebook, tiktok", name)
	}
	return p, nil
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "no expiry"
	}
	return "expires " + t.Local().Format("Jan 2, 2006 15:04")
}

// newConnectCmd creates the connect subcommand.
func newConnectCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "connect <platform>",
		Short: "Connect a platform account (youtube, instagram, facebook or tiktok)",
		Long:  "Run the OAuth authorization flow for a platform and store the resulting token.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePlatformArg(args[0])
			if err != nil {
				return err
			}

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Logger.Sync() }()

			callbackServer := oauth.NewCallbackServer(port)
			authURL, state, err := a.AuthorizationURL(p, callbackServer.Origin(), "")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connecting %s...\n", p)
			fmt.Fprintf(out, "Opening browser for authorization...\n")
			if err := browser.Open(authURL); err != nil {
				fmt.Fprintf(out, "Could not open browser. Please visit:\n%s\n", authURL)
			}

			fmt.Fprintf(out, "Waiting for authorization...\n")
			ctx, cancel := context.WithTimeout(cmd.Context(), callbackTimeout)
			defer cancel()

			code, err := callbackServer.WaitForCallback(ctx, state, callbackTimeout)
			if err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			fmt.Fprintf(out, "Exchanging authorization code...\n")
			creds, err := a.Complete(ctx, p, code, callbackServer.Origin())
			if err != nil {
				return fmt.Errorf("token exchange failed: %w", err)
			}

			for _, cred := range creds {
				fmt.Fprintf(out, "Connected %s (%s)\n", cred.Platform, formatExpiry(cred.ExpiresAt))
			}
			fmt.Fprintf(out, "Token saved to: %s\n", a.Tokens.Dir())
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port for OAuth callback server")

	return cmd
}

// newFeedCmd creates the feed subcommand.
func newFeedCmd() *cobra.Command {
	var (
		platform string
		limit    int
		cache    bool
		offline  bool
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Display the merged feed",
		Long:  "Fetch recent posts from every connected platform and display them newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := aggregator.FeedOptions{Limit: limit}
			if platform != "" {
				p, err := parsePlatformArg(platform)
				if err != nil {
					return err
				}
				opts.Platforms = []oauth.Platform{p}
			}

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Logger.Sync() }()
			if opts.Limit <= 0 {
				opts.Limit = a.Config.Limit
			}

			if cache || offline {
				if err := a.OpenCache(); err != nil {
					return err
				}
				defer func() { _ = a.Close() }()
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), feedTimeout)
			defer cancel()

			var posts []aggregator.Post
			if offline {
				posts, err = a.CachedFeed(ctx, opts)
				if err != nil {
					return err
				}
			} else {
				posts = a.Feed(ctx, opts)
			}

			fmt.Fprint(cmd.OutOrStdout(), display.NewTerminalFormatter().FormatFeed(posts))
			return nil
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "Filter by platform (youtube, instagram, facebook, tiktok)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum number of posts to display (default from config)")
	cmd.Flags().BoolVar(&cache, "cache", false, "Save fetched posts to the local cache")
	cmd.Flags().BoolVar(&offline, "offline", false, "Read posts from the local cache without calling any platform")

	return cmd
}

// newStatsCmd creates the stats subcommand.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Display follower counts",
		Long:  "Display the follower count of every connected platform.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), feedTimeout)
			defer cancel()

			fmt.Fprint(cmd.OutOrStdout(), display.NewTerminalFormatter().FormatStats(a.Stats(ctx)))
			return nil
		},
	}
}

// newUpgradeTokenCmd creates the upgrade-token subcommand.
func newUpgradeTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade-token",
		Short: "Exchange the Meta token for a long-lived one",
		Long:  "Exchange the stored Facebook/Instagram token for a long-lived (about 60 day) token.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), feedTimeout)
			defer cancel()

			cred, err := a.UpgradeMetaToken(ctx)
			if err != nil {
				return fmt.Errorf("%w (run 'creatorfeed connect facebook' first if no token is stored)", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Meta token upgraded (%s)\n", formatExpiry(cred.ExpiresAt))
			return nil
		},
	}
}

// newDisconnectCmd creates the disconnect subcommand.
func newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <platform>",
		Short: "Remove a platform's stored token and cached posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePlatformArg(args[0])
			if err != nil {
				return err
			}

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Logger.Sync() }()

			if err := a.OpenCache(); err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			removed, err := a.Disconnect(cmd.Context(), p)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Disconnected %s (removed %d cached posts)\n", p, removed)
			return nil
		},
	}
}

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the feed and connect flow over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Logger.Sync() }()
			if addr != "" {
				a.Config.Server.Addr = addr
			}
			if a.Config.Log.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			if err := a.OpenCache(); err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", a.Config.Server.Addr)
			return server.New(a).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")

	return cmd
}

// newConfigCmd creates the config subcommand.
func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration and connection status",
		Long:  "Show where creatorfeed reads its configuration and tokens, and the state of every platform connection.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			cfg := a.Config
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Config directory: %s\n", cfg.Dir())
			fmt.Fprintf(out, "Origin: %s\n", cfg.Origin)
			fmt.Fprintf(out, "Post cache: %s\n", cfg.Cache.Path)
			fmt.Fprintf(out, "YouTube API key: %s\n", config.Mask(cfg.YouTube.APIKey))
			fmt.Fprintf(out, "YouTube client ID: %s\n", config.Mask(cfg.YouTube.ClientID))
			fmt.Fprintf(out, "Meta app ID: %s\n", config.Mask(cfg.Meta.AppID))
			fmt.Fprintf(out, "TikTok client key: %s\n", config.Mask(cfg.TikTok.ClientKey))
			fmt.Fprintf(out, "\nConnections:\n")
			fmt.Fprint(out, display.NewTerminalFormatter().FormatConnections(a.Credentials()))
			return nil
		},
	}
}
