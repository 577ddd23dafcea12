// cmd/watch.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/spacewatch/api/schemas"
	"github.com/xkilldash9x/spacewatch/internal/config"
	"github.com/xkilldash9x/spacewatch/internal/measure"
	"github.com/xkilldash9x/spacewatch/internal/observability"
	"github.com/xkilldash9x/spacewatch/internal/stream"
	"github.com/xkilldash9x/spacewatch/internal/tracker"
	"github.com/xkilldash9x/spacewatch/internal/trigger"
)

// Stream names used in watch output.
const (
	streamContainerSize  = "container_size"
	streamAvailableSize  = "available_size"
	streamTallestContent = "tallest_content"
)

// watchEvent is one line of watch output.
type watchEvent struct {
	Time      time.Time             `json:"time"`
	Container string                `json:"container"`
	Stream    string                `json:"stream"`
	Payload   schemas.AvailableSize `json:"payload"`
}

// eventWriter serializes events as JSON lines from many goroutines.
type eventWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newEventWriter(w io.Writer) *eventWriter {
	return &eventWriter{enc: json.ConfigCompatibleWithStandardLibrary.NewEncoder(w)}
}

func (w *eventWriter) write(ev watchEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(ev)
}

// watchPlan is what the watch command tracks.
type watchPlan struct {
	Containers []selectorPair
	Contents   []selectorPair
}

func newWatchCmd() *cobra.Command {
	var (
		url          string
		containers   []string
		contents     []string
		headless     bool
		pollInterval time.Duration
	)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Streams available-space changes of a page as JSON lines",
		Long: `Opens the page, tracks the viewport plus every --container, subtracts the
sizes of the --content elements registered with each container, and prints one
JSON line per change until interrupted.

  spacewatch watch --url https://example.com \
    --container sidebar=#sidebar \
    --content sidebar=.ad --content viewport=header`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("headless") {
				cfg.SetBrowserHeadless(headless)
			}
			if cmd.Flags().Changed("poll-interval") {
				if pollInterval <= 0 {
					return errors.New("--poll-interval must be positive")
				}
				cfg.SetTrackerPollInterval(pollInterval)
			}

			plan := watchPlan{}
			if plan.Containers, err = parseSelectorPairs("container", containers); err != nil {
				return err
			}
			if plan.Contents, err = parseSelectorPairs("content", contents); err != nil {
				return err
			}

			pg, err := openPage(ctx, cfg, url, logger)
			if err != nil {
				return err
			}
			defer pg.Close(logger)

			logger.Info("Watching page.", zap.String("url", url),
				zap.Int("containers", len(plan.Containers)), zap.Int("contents", len(plan.Contents)))

			err = runWatch(ctx, cmd.OutOrStdout(), pg.provider, cfg.Tracker(), plan, logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	watchCmd.Flags().StringVarP(&url, "url", "u", "", "URL of the page to watch (required)")
	watchCmd.Flags().StringArrayVar(&containers, "container", nil, "container to track, as name=selector (repeatable)")
	watchCmd.Flags().StringArrayVar(&contents, "content", nil, "content to subtract, as container=selector (repeatable)")
	watchCmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless (overrides config)")
	watchCmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "timer trigger period (overrides config)")
	_ = watchCmd.MarkFlagRequired("url")
	return watchCmd
}

// runWatch tracks plan against provider and writes every stream emission to
// out until ctx is cancelled or a write fails.
func runWatch(ctx context.Context, out io.Writer, provider measure.Provider, cfg config.TrackerConfig, plan watchPlan, logger *zap.Logger) error {
	bus := trigger.NewBus(logger, trigger.Options{
		PollInterval: cfg.PollInterval,
		Buffer:       cfg.BusBuffer,
		Resize:       provider.ResizeSignal(),
	})
	reg := tracker.NewRegistry(ctx, provider, bus, logger, tracker.Options{StreamBuffer: cfg.StreamBuffer})

	var closeOnce sync.Once
	shutdown := func() {
		closeOnce.Do(func() {
			reg.Close()
			bus.Shutdown()
		})
	}
	defer shutdown()

	if err := registerPlan(reg, plan); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	events := newEventWriter(out)

	for _, name := range reg.Names() {
		c := reg.GetContainer(name)
		for streamName, values := range map[string]*stream.Value[schemas.AvailableSize]{
			streamContainerSize:  c.ContainerSize(),
			streamAvailableSize:  c.AvailableSize(),
			streamTallestContent: c.TallestContent(),
		} {
			ch, unsubscribe := values.Subscribe()
			g.Go(func() error {
				defer unsubscribe()
				for payload := range ch {
					ev := watchEvent{Time: time.Now().UTC(), Container: name, Stream: streamName, Payload: payload}
					if err := events.write(ev); err != nil {
						return fmt.Errorf("failed to write event: %w", err)
					}
				}
				return nil
			})
		}
	}

	// Closing the registry closes every stream, which ends the drain loops.
	g.Go(func() error {
		<-gctx.Done()
		shutdown()
		return nil
	})

	bus.Start(gctx)
	reg.TriggerEvent()

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// registerPlan adds the viewport, every container, and then every content.
// Contents name an already registered container.
func registerPlan(reg *tracker.Registry, plan watchPlan) error {
	if _, err := reg.Viewport(); err != nil {
		return err
	}
	for _, p := range plan.Containers {
		if _, err := reg.AddContainer(p.Name, elementFor(p.Selector)); err != nil {
			return fmt.Errorf("failed to register container %q: %w", p.Name, err)
		}
	}
	for _, p := range plan.Contents {
		c := reg.GetContainer(p.Name)
		if c == nil {
			return fmt.Errorf("content %q targets unknown container %q", p.Selector, p.Name)
		}
		c.AddContent(elementFor(p.Selector))
	}
	return nil
}
