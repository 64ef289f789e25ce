package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"stevedore/internal/engine"
	"stevedore/internal/events"
	"stevedore/internal/metrics"
	"stevedore/internal/orchestrator"
	"stevedore/internal/prefs"
	"stevedore/internal/relay"
)

var (
	format    string
	prefsPath string
	natsURL   string
	verbose   bool
)

func main() {
	root := &cobra.Command{
		Use:   "stevedore",
		Short: "Stevedore — orchestrate container engines from the desktop",
	}

	root.PersistentFlags().StringVar(&format, "format", "table", "output format: table or json")
	root.PersistentFlags().StringVar(&prefsPath, "prefs", "", "preference file path (default: user config dir)")
	root.PersistentFlags().StringVar(&natsURL, "nats", "", "relay events to this NATS URL")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		enginesCmd(),
		psCmd(),
		lifecycleCmd("start", "Start containers", engine.OpStart),
		lifecycleCmd("stop", "Stop containers", engine.OpStop),
		lifecycleCmd("restart", "Restart containers", engine.OpRestart),
		lifecycleCmd("pause", "Pause containers", engine.OpPause),
		lifecycleCmd("unpause", "Unpause containers", engine.OpUnpause),
		lifecycleCmd("rm", "Remove containers", engine.OpRemove),
		watchCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	orch   *orchestrator.Orchestrator
	prefs  *prefs.FileStore
	relay  *relay.Client
	logger *slog.Logger
}

func newApp() (*app, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	path := prefsPath
	if path == "" {
		var err error
		path, err = prefs.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	prefStore := prefs.NewFileStore(path, logger)

	backend := engine.NewDockerBackend(engine.DockerBackendConfig{}, logger)
	orch := orchestrator.New(backend, prefStore, logger)

	a := &app{orch: orch, prefs: prefStore, logger: logger}
	if natsURL != "" {
		cfg := relay.DefaultConfig()
		cfg.URL = natsURL
		rc, err := relay.Connect(cfg, "stevedore-cli", logger)
		if err != nil {
			return nil, err
		}
		rc.ForwardEvents(orch.Emitter)
		a.relay = rc
	}
	return a, nil
}

func (a *app) close() {
	a.orch.Stop()
	a.prefs.Flush()
	if a.relay != nil {
		a.relay.Close()
	}
}

func enginesCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "engines",
		Short: "Detect installed container engines",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.orch.Detect(cmd.Context(), force)
			if err != nil {
				return err
			}

			if format == "json" {
				return printJSON(result)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tVERSION\tSTATUS\tMODE\tPATH")
			for _, rt := range result.Runtimes {
				mode := rt.Mode
				if rt.CompatLayer {
					mode += " (compat)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					rt.ID, rt.Kind, rt.Version, rt.Status, mode, rt.Path)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			for _, derr := range result.Errors {
				fmt.Fprintf(os.Stderr, "warning: %s probe failed: %s\n", derr.Kind, derr.Error)
			}
			if selected := a.orch.Store.Selected(); selected != nil {
				fmt.Printf("\nActive engine: %s\n", selected.ID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-probe instead of using cached detection")
	return cmd
}

func watchCmd() *cobra.Command {
	var interval time.Duration
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Monitor engine health and container state until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a.orch.Start(ctx)
			if _, err := a.orch.Detect(ctx, false); err != nil {
				return err
			}
			a.orch.Cache.StartAutoRefresh(ctx, interval, engine.ListOptions{All: true})

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				go func() {
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						a.logger.Error("metrics server failed", "error", err)
					}
				}()
			}

			a.orch.Emitter.OnEvent(func(ev events.Event) {
				line := fmt.Sprintf("%s  %s", ev.Timestamp.Format(time.TimeOnly), ev.Type)
				if ev.Runtime != "" {
					line += "  " + ev.Runtime
				}
				if ev.Container != "" {
					line += "  " + shortID(ev.Container)
				}
				fmt.Println(line)
			})

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "container list refresh interval")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "serve Prometheus metrics on this address")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
