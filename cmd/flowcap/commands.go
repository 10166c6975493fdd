package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/flowcap/pkg/client"
)

const (
	defaultAPITimeout = 30 * time.Second
	installTimeout    = 10 * time.Minute
)

type command struct {
	global *GlobalFlags
	out    io.Writer
	// newLocal is replaced in tests.
	newLocal func(configPath string) (backend, error)
}

func (c *command) stdout() io.Writer {
	if c.out != nil {
		return c.out
	}
	return os.Stdout
}

// remoteBackend connects to the daemon, defaulting to the local one.
func (c *command) remoteBackend(ctx context.Context, timeout time.Duration) (backend, error) {
	apiURL := c.global.APIUrl
	if apiURL == "" {
		apiURL = client.DefaultBaseURL
	}
	if c.global.APITimeout > 0 {
		timeout = c.global.APITimeout
	}
	cl := client.New(client.Config{BaseURL: apiURL, Timeout: timeout})
	if !cl.IsReachable(ctx) {
		return nil, fmt.Errorf("daemon not reachable at %s - please start it first with 'flowcap serve'", apiURL)
	}
	return remote{cl}, nil
}

// backend drives the daemon when --api-url is set and an in-process App otherwise.
func (c *command) backend(ctx context.Context, timeout time.Duration) (backend, error) {
	if c.global.APIUrl != "" {
		return c.remoteBackend(ctx, timeout)
	}
	if c.newLocal != nil {
		return c.newLocal(c.global.ConfigPath)
	}
	return newLocal(c.global.ConfigPath)
}

// with runs fn against a backend and releases it afterwards.
func (c *command) with(ctx context.Context, b backend, err error, fn func(backend) error) error {
	if err != nil {
		return err
	}
	defer func() { _ = b.Close(ctx) }()
	return fn(b)
}

func (c *command) Greet(ctx context.Context, name string) error {
	b, err := c.backend(ctx, defaultAPITimeout)
	return c.with(ctx, b, err, func(b backend) error {
		msg, err := b.Greet(ctx, name)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(c.stdout(), msg)
		return nil
	})
}

func (c *command) Check(ctx context.Context, f CheckFlags) error {
	b, err := c.backend(ctx, defaultAPITimeout)
	return c.with(ctx, b, err, func(b backend) error {
		var (
			v   any
			err error
		)
		if f.Full {
			v, err = b.SystemDependencies(ctx)
		} else {
			v, err = b.Dependencies(ctx)
		}
		if err != nil {
			return err
		}
		printJSON(c.stdout(), v)
		return nil
	})
}

func (c *command) Install(ctx context.Context, browsers bool) error {
	b, err := c.backend(ctx, installTimeout)
	return c.with(ctx, b, err, func(b backend) error {
		run := b.InstallDependencies
		if browsers {
			run = b.InstallBrowsers
		}
		msg, err := run(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(c.stdout(), msg)
		return nil
	})
}

// Record starts a session and follows it until it ends. Interrupting stops it.
func (c *command) Record(ctx context.Context, cmd *cobra.Command, f RecordFlags) error {
	opts := client.RecordingOptions{
		FigmaURL:      f.URL,
		RecordingMode: f.Mode,
		Quality:       f.Quality,
		Format:        f.Format,
		WaitForCanvas: f.WaitForCanvas,
	}
	if cmd.Flags().Changed("width") {
		opts.CustomWidth = &f.Width
	}
	if cmd.Flags().Changed("height") {
		opts.CustomHeight = &f.Height
	}
	if cmd.Flags().Changed("duration") {
		opts.Duration = &f.Duration
	}
	if cmd.Flags().Changed("frame-rate") {
		opts.FrameRate = &f.FrameRate
	}
	if f.PollInterval <= 0 {
		f.PollInterval = time.Second
	}

	b, err := c.backend(ctx, defaultAPITimeout)
	return c.with(ctx, b, err, func(b backend) error {
		s, err := b.StartRecording(ctx, opts)
		if err != nil {
			return err
		}
		if s.Status == client.StatusFailed {
			printJSON(c.stdout(), s)
			return sessionError(s)
		}
		_, _ = fmt.Fprintf(c.stdout(), "Recording %s started; press Ctrl-C to stop\n", s.ID)
		return c.follow(ctx, b, s, f.PollInterval)
	})
}

func (c *command) follow(ctx context.Context, b backend, s client.RecordingSession, every time.Duration) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-sigCtx.Done():
			if err := b.StopRecording(ctx, s.ID); err != nil && !client.IsNotFound(err) {
				return err
			}
			s.Status = client.StatusCompleted
			printJSON(c.stdout(), s)
			return nil
		case <-ticker.C:
			cur, err := b.RecordingStatus(ctx, s.ID)
			if err != nil {
				return err
			}
			if cur.Status == client.StatusRecording {
				continue
			}
			printJSON(c.stdout(), cur)
			if cur.Status == client.StatusFailed {
				return sessionError(cur)
			}
			return nil
		}
	}
}

func sessionError(s client.RecordingSession) error {
	if s.Error != nil {
		return errors.New(*s.Error)
	}
	return fmt.Errorf("recording %s failed", s.ID)
}

func (c *command) Status(ctx context.Context, id string) error {
	b, err := c.remoteBackend(ctx, defaultAPITimeout)
	return c.with(ctx, b, err, func(b backend) error {
		s, err := b.RecordingStatus(ctx, id)
		if err != nil {
			return err
		}
		printJSON(c.stdout(), s)
		return nil
	})
}

func (c *command) Stop(ctx context.Context, id string) error {
	b, err := c.remoteBackend(ctx, defaultAPITimeout)
	return c.with(ctx, b, err, func(b backend) error {
		if err := b.StopRecording(ctx, id); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(c.stdout(), "Recording %s stopped\n", id)
		return nil
	})
}

func (c *command) List(ctx context.Context) error {
	b, err := c.backend(ctx, defaultAPITimeout)
	return c.with(ctx, b, err, func(b backend) error {
		names, err := b.ListRecordings(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			_, _ = fmt.Fprintln(c.stdout(), n)
		}
		return nil
	})
}

func (c *command) Open(ctx context.Context) error {
	b, err := c.backend(ctx, defaultAPITimeout)
	return c.with(ctx, b, err, func(b backend) error { return b.OpenRecordingsFolder(ctx) })
}

func (c *command) History(ctx context.Context, f HistoryFlags) error {
	b, err := c.backend(ctx, defaultAPITimeout)
	return c.with(ctx, b, err, func(b backend) error {
		var h any
		var err error
		if f.SessionID != "" {
			h, err = b.SessionHistory(ctx, f.SessionID)
		} else {
			h, err = b.History(ctx, f.Limit)
		}
		if err != nil {
			return err
		}
		printJSON(c.stdout(), h)
		return nil
	})
}

func createGreetCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "greet NAME",
		Short: "Print the welcome message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Greet(cmd.Context(), args[0])
		},
	}
}

func createCheckCommand(c *command) *cobra.Command {
	f := &CheckFlags{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that Node.js, pnpm, FFmpeg and the Playwright browsers are installed",
		Long: `Probe the recording toolchain and print the result as JSON.

Examples:
  flowcap check          # installed/version per tool
  flowcap check --full   # with install guidance and readiness`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Check(cmd.Context(), *f)
		},
	}
	cmd.Flags().BoolVar(&f.Full, "full", false, "include install guidance and ready_to_record")
	return cmd
}

func createInstallCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Run pnpm install in the recorder project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Install(cmd.Context(), false)
		},
	}
}

func createInstallBrowsersCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "install-browsers",
		Short: "Install the Playwright browsers used by the recorder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Install(cmd.Context(), true)
		},
	}
}

func createRecordCommand(c *command) *cobra.Command {
	f := &RecordFlags{}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a Figma prototype flow in the foreground",
		Long: `Start a recording and wait for it to finish. Ctrl-C stops it.

Examples:
  flowcap record --url=https://www.figma.com/proto/abc --duration=30
  flowcap record --url=https://www.figma.com/proto/abc --mode=frames --format=png
  flowcap record --url=... --api-url=http://127.0.0.1:7878/api   # via the daemon`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Record(cmd.Context(), cmd, *f)
		},
	}
	cmd.Flags().StringVar(&f.URL, "url", "", "Figma prototype URL (required)")
	cmd.Flags().StringVar(&f.Mode, "mode", "video", "recording mode: video or frames")
	cmd.Flags().StringVar(&f.Format, "format", "mp4", "output format")
	cmd.Flags().StringVar(&f.Quality, "quality", "high", "quality preset")
	cmd.Flags().Uint32Var(&f.Width, "width", 0, "viewport width")
	cmd.Flags().Uint32Var(&f.Height, "height", 0, "viewport height")
	cmd.Flags().Uint32Var(&f.Duration, "duration", 0, "recording length in seconds")
	cmd.Flags().Uint32Var(&f.FrameRate, "frame-rate", 0, "frames per second")
	cmd.Flags().BoolVar(&f.WaitForCanvas, "wait-for-canvas", true, "wait for the prototype canvas before recording")
	cmd.Flags().DurationVar(&f.PollInterval, "poll", time.Second, "status poll interval")
	if err := cmd.MarkFlagRequired("url"); err != nil {
		panic(err)
	}
	return cmd
}

func createStatusCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID",
		Short: "Show a recording's status (daemon)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(cmd.Context(), args[0])
		},
	}
}

func createStopCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop ID",
		Short: "Stop a recording (daemon)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Stop(cmd.Context(), args[0])
		},
	}
}

func createListCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List files in the recordings directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.List(cmd.Context())
		},
	}
}

func createOpenCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open the recordings directory in the file manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Open(cmd.Context())
		},
	}
}

func createHistoryCommand(c *command) *cobra.Command {
	f := &HistoryFlags{}
	cmd := &cobra.Command{
		Use:   "history [ID]",
		Short: "Show persisted recording sessions (requires store.dsn)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.SessionID = args[0]
			}
			return c.History(cmd.Context(), *f)
		},
	}
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum number of sessions (default 50)")
	return cmd
}
