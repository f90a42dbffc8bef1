// Package cli is the a11yscan command tree: serve the HTTP API, run a
// one-shot scan, or serve the fixture site.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/demoserver"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
)

// CLIArgs are the global flags shared by every command.
type CLIArgs struct {
	// ConfigFile is an optional YAML file; a11yscan.yaml in the working
	// directory is used when empty.
	ConfigFile string

	// Verbose forces debug logging.
	Verbose bool

	// Options lets tests swap the browser and engine.
	Options app.Options
}

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRootCommand(&CLIArgs{}).Execute()
}

func NewRootCommand(args *CLIArgs) *cobra.Command {
	root := &cobra.Command{
		Use:   "a11yscan",
		Short: "WCAG 2.0 A/AA and cookie-consent scanner for single web pages",
		Long: `a11yscan loads a page in a headless browser, runs the axe-core rules
engine against WCAG 2.0 Level A and AA, and reports violations with a WCAG
checklist and the accessibility law of a country. A second scan reports the
cookies and third-party hosts a page uses before any consent is given.

Configuration comes from a11yscan.yaml (or --config), then the environment:
PORT, CHROME_PATH, RENDER and A11YSCAN_<SECTION>_<KEY>.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&args.ConfigFile, "config", "", "config file path (default a11yscan.yaml when present)")
	root.PersistentFlags().BoolVar(&args.Verbose, "verbose", false, "debug logging")
	root.Version = "0.1.0"

	root.AddCommand(newServeCommand(args), newScanCommand(args), newDemoCommand(args))
	return root
}

// load reads the configuration and builds the logger.
func (a *CLIArgs) load(stderrOnly bool) (*app.Config, logging.Logger, error) {
	path := a.ConfigFile
	if path == "" {
		path = app.DefaultConfigFile()
	}
	cfg, err := app.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if a.Verbose {
		cfg.Log.Level = "debug"
	}
	// Keep stdout for machine-readable output.
	if stderrOnly && cfg.Log.Output == "stdout" {
		cfg.Log.Output = "stderr"
	}
	logger, err := logging.New(cfg.Log, "a11yscan")
	if err != nil {
		return nil, nil, fmt.Errorf("configuring logger: %w", err)
	}
	return cfg, logger, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newServeCommand(args *CLIArgs) *cobra.Command {
	var (
		port int
		warm bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API (POST /scan, POST /scan-cookie, GET /health)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := args.load(false)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			a, err := app.NewApplication(cfg, logger, args.Options)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if warm {
				go a.Warm(ctx)
			}

			srv := a.Server.HTTPServer()
			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", logging.Field{Key: "addr", Value: srv.Addr})
				errCh <- srv.ListenAndServe()
			}()

			var serveErr error
			select {
			case serveErr = <-errCh:
			case <-ctx.Done():
				logger.Info("shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", logging.Err(err))
			}
			if err := a.Shutdown(shutdownCtx); err != nil {
				logger.Warn("application shutdown", logging.Err(err))
			}
			if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				return serveErr
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config and PORT)")
	cmd.Flags().BoolVar(&warm, "warm", true, "launch the browser at startup instead of on the first scan")
	return cmd
}

func newScanCommand(args *CLIArgs) *cobra.Command {
	var (
		cookies bool
		country string
		pretty  bool
	)
	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Scan one page and print the result as JSON",
		Example: `  a11yscan scan https://example.com
  a11yscan scan https://example.com --country "United States" --pretty
  a11yscan scan https://example.com --cookies`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, pos []string) error {
			cfg, logger, err := args.load(true)
			if err != nil {
				return err
			}
			a, err := app.NewApplication(cfg, logger, args.Options)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Shutdown(context.Background()); err != nil {
					logger.Warn("application shutdown", logging.Err(err))
				}
			}()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			req := model.ScanRequest{URL: pos[0], Country: country}
			var res any
			if cookies {
				res, err = a.Scanner.ScanCookies(ctx, req, nil)
			} else {
				res, err = a.Scanner.Scan(ctx, req, nil)
			}
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), res, pretty)
		},
	}
	cmd.Flags().BoolVar(&cookies, "cookies", false, "report cookies and third-party hosts instead of WCAG violations")
	cmd.Flags().StringVar(&country, "country", "", "attach the accessibility law of this country")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	return cmd
}

func writeResult(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func newDemoCommand(args *CLIArgs) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Serve fixture pages with known accessibility and consent problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := args.load(false)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Demo.Port = port
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return demoserver.NewDemoServer(cfg.Demo, logger).Start(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config, 9999)")
	return cmd
}
