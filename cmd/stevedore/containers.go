package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"stevedore/internal/engine"
)

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func psCmd() *cobra.Command {
	var all, size bool
	var filterArgs []string

	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List containers on the active engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.orch.Detect(cmd.Context(), false); err != nil {
				return err
			}

			filters := make(map[string]string)
			for _, f := range filterArgs {
				key, value, ok := strings.Cut(f, "=")
				if !ok {
					return fmt.Errorf("invalid filter %q, want key=value", f)
				}
				filters[key] = value
			}

			opts := engine.ListOptions{All: all, Size: size, Filters: filters}
			if err := a.orch.Cache.Refresh(cmd.Context(), opts); err != nil {
				return err
			}
			containers := a.orch.Cache.Containers()

			if format == "json" {
				return printJSON(containers)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tIMAGE\tSTATE\tSTATUS\tPORTS")
			for _, c := range containers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					shortID(c.ID), c.Name, c.Image, c.State, c.Status, formatPorts(c.Ports))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include stopped containers")
	cmd.Flags().BoolVar(&size, "size", false, "include container sizes")
	cmd.Flags().StringArrayVar(&filterArgs, "filter", nil, "filter output (key=value)")
	return cmd
}

func formatPorts(ports []engine.Port) string {
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		if p.PublicPort != 0 {
			parts = append(parts, fmt.Sprintf("%d->%d/%s", p.PublicPort, p.PrivatePort, p.Type))
		} else {
			parts = append(parts, fmt.Sprintf("%d/%s", p.PrivatePort, p.Type))
		}
	}
	return strings.Join(parts, ", ")
}

func lifecycleCmd(use, short string, op engine.Op) *cobra.Command {
	var timeout time.Duration
	var force, volumes bool

	cmd := &cobra.Command{
		Use:   use + " CONTAINER [CONTAINER...]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.orch.Detect(cmd.Context(), false); err != nil {
				return err
			}

			opArgs := engine.OpArgs{Timeout: timeout, Force: force, RemoveVolumes: volumes}

			if len(args) == 1 {
				if err := a.orch.Coordinator.Request(cmd.Context(), args[0], op, opArgs); err != nil {
					return err
				}
				fmt.Println(shortID(args[0]))
				return nil
			}

			results, err := a.orch.Batch.Execute(cmd.Context(), args, op, opArgs)
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				switch {
				case r.Skipped:
					fmt.Printf("%s\tskipped (operation in flight)\n", shortID(r.ID))
				case r.Ok:
					fmt.Println(shortID(r.ID))
				default:
					failed++
					fmt.Fprintf(os.Stderr, "%s\t%s\n", shortID(r.ID), r.Error)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d operations failed", failed, len(results))
			}
			return nil
		},
	}

	switch op {
	case engine.OpStop, engine.OpRestart:
		cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "grace period before killing (engine default when zero)")
	case engine.OpRemove:
		cmd.Flags().BoolVarP(&force, "force", "f", false, "remove running containers")
		cmd.Flags().BoolVar(&volumes, "volumes", false, "remove anonymous volumes")
	}
	return cmd
}
