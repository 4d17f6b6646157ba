package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/hostbridge-go/pkg/events"
	"github.com/ajitpratap0/hostbridge-go/pkg/logging"
)

type demoOptions struct {
	pick   string
	remove string
	quiet  bool
}

func newDemoCommand(flags *globalFlags) *cobra.Command {
	opts := &demoOptions{}
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Connect, fetch the roster, pick and remove one entry",
		Long: `demo runs one full session against the detected host: connect, fetch the
roster, report a pick and a removal, then disconnect. Every bridge event is
printed as a JSON line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), cfg, flags, cmd.ErrOrStderr(), hostIO{in: cmd.InOrStdin(), out: os.Stdout})
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close(context.Background()) }()

			out := cmd.OutOrStdout()
			if flags.stdio {
				out = cmd.ErrOrStderr()
			}
			return runDemo(cmd.Context(), rt, opts, out)
		},
	}
	cmd.Flags().StringVar(&opts.pick, "pick", "", "entry id to pick (default: first active entry)")
	cmd.Flags().StringVar(&opts.remove, "remove", "", "entry id to remove (default: the picked entry)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print events")
	return cmd
}

// eventPrinter writes one JSON line per bus event
type eventPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *eventPrinter) print(e events.Event) {
	line, err := json.Marshal(map[string]interface{}{"event": e.Name, "payload": e.Payload})
	if err != nil {
		line = []byte(fmt.Sprintf(`{"event":%q,"payload":%q}`, e.Name, fmt.Sprint(e.Payload)))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, string(line))
}

func runDemo(ctx context.Context, rt *runtime, opts *demoOptions, out io.Writer) error {
	if !opts.quiet {
		printer := &eventPrinter{out: out}
		unsubscribe := rt.bridge.Bus().SubscribeAll(printer.print)
		defer unsubscribe()
	}

	if err := rt.bridge.Connect(ctx); err != nil && !rt.bridge.IsConnected() {
		return fmt.Errorf("connect: %w", err)
	}
	info := rt.bridge.ConnectionInfo()
	rt.logger.Info("connected", logging.String("environment", string(info.Environment)))
	fmt.Fprintf(out, "# connected via %s\n", info.Environment)

	entries, err := rt.bridge.FetchRoster(ctx)
	if err != nil {
		return fmt.Errorf("fetch roster: %w", err)
	}
	fmt.Fprintf(out, "# roster has %d active entries\n", len(entries))
	if len(entries) == 0 {
		return nil
	}

	pickID := opts.pick
	if pickID == "" {
		pickID = entries[0].ID
	}
	picked, err := rt.bridge.ReportPick(ctx, pickID)
	if err != nil {
		return fmt.Errorf("report pick: %w", err)
	}
	fmt.Fprintf(out, "# pick %s acknowledged: %t\n", pickID, picked)

	removeID := opts.remove
	if removeID == "" {
		removeID = pickID
	}
	removed, err := rt.bridge.ReportRemoval(ctx, removeID)
	if err != nil {
		return fmt.Errorf("report removal: %w", err)
	}
	fmt.Fprintf(out, "# removal of %s acknowledged: %t, %d active\n", removeID, removed, len(rt.bridge.CachedRoster()))

	return rt.bridge.Disconnect(ctx)
}
