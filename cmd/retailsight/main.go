package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/ayusman/retailsight/internal/app"
	"github.com/ayusman/retailsight/internal/capture"
	"github.com/ayusman/retailsight/internal/config"
	"github.com/ayusman/retailsight/internal/detector"
	"github.com/ayusman/retailsight/internal/notify"
	"github.com/ayusman/retailsight/internal/report"
	"github.com/ayusman/retailsight/internal/server"
	"github.com/ayusman/retailsight/internal/store"
	"github.com/ayusman/retailsight/internal/tracking"
	"github.com/ayusman/retailsight/internal/tray"
)

const outputVideo = "output_video.mp4"

func main() {
	fmt.Println("Retailsight - Customer Entrance Tracking")

	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

// run wires the components from configuration and args and runs one
// analysis. Every resource opened here is released before it returns.
func run(args []string) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fs := flag.NewFlagSet("retailsight", flag.ContinueOnError)
	fs.StringVar(&cfg.Input, "input", cfg.Input, "video file, stream URL or camera index")
	fs.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "directory for the annotated video and report")
	fs.StringVar(&cfg.SnapshotDir, "snapshots", cfg.SnapshotDir, "directory for periodic snapshots (empty disables)")
	fs.IntVar(&cfg.FrameSkip, "skip-frames", cfg.FrameSkip, "process one frame out of every N")
	fs.DurationVar(&cfg.CaptureInterval, "capture-interval", cfg.CaptureInterval, "time between snapshots")
	fs.StringVar(&cfg.Detector, "detector", cfg.Detector, "object detector: dnn, sidecar or mock")
	fs.StringVar(&cfg.RolesFile, "roles", cfg.RolesFile, "JSON file mapping class ids to roles")
	fs.StringVar(&cfg.WebhookURL, "webhook", cfg.WebhookURL, "URL to POST entry events to")
	fs.StringVar(&cfg.HookPath, "hook", cfg.HookPath, "hook executable run on every entry")
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "address for the live dashboard, e.g. :8080")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path")
	noDB := fs.Bool("no-db", false, "do not record the run in the database")
	noHands := fs.Bool("no-hands", false, "disable hand landmark detection")
	withTray := fs.Bool("tray", false, "show a system tray icon with the live count")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	roles, err := cfg.Roles()
	if err != nil {
		return fmt.Errorf("failed to load roles: %w", err)
	}
	assignment, _ := tracking.ParseHandAssignment(cfg.HandAssignment)

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var st *store.Store
	if !*noDB {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		st, err = store.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		defer st.Close()
	}

	notifiers := notify.Multi{notify.Logger}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewHTTPSink(cfg.WebhookURL, nil))
	}
	if cfg.HookPath != "" {
		hook, err := notify.HookFromPath(cfg.HookPath)
		if err != nil {
			return fmt.Errorf("failed to load hook: %w", err)
		}
		notifiers = append(notifiers, notify.NewExecSink(hook, notify.DefaultHookTimeout))
	}
	if cfg.HooksDir != "" {
		hooks, err := notify.DiscoverHooks(cfg.HooksDir)
		if err != nil {
			log.Printf("Failed to discover hooks in %s: %v", cfg.HooksDir, err)
		}
		for _, hook := range hooks {
			fmt.Printf("Loaded hook: %s\n", hook.Manifest.Name)
			notifiers = append(notifiers, notify.NewExecSink(hook, notify.DefaultHookTimeout))
		}
	}

	detCfg := detector.DefaultConfig()
	detCfg.ModelPath = cfg.ModelPath
	detCfg.ModelConfig = cfg.ModelConfig
	detCfg.MinConfidence = cfg.MinConfidence
	detCfg.ScriptDir = cfg.ScriptDir

	objects, err := newObjectDetector(cfg.Detector, detCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize detector: %w", err)
	}

	var hands detector.HandDetector
	if !*noHands {
		mp, err := detector.NewMediaPipeDetector(detCfg)
		if err != nil {
			log.Printf("Hand detection disabled: %v", err)
		} else {
			hands = mp
		}
	}

	var (
		a      *app.App
		stream *server.StreamHandler
		events *server.EventsHandler
	)
	if cfg.ListenAddr != "" {
		stream = server.NewStreamHandler()
		events = server.NewEventsHandler(func() int { return a.Count() })
		notifiers = append(notifiers, events)
	}

	a, err = app.New(app.Config{
		Source:            capture.NewSource(cfg.Input),
		Detector:          objects,
		Sink:              capture.NewVideoFileSink(filepath.Join(cfg.OutputDir, outputVideo)),
		Hands:             hands,
		Roles:             roles,
		FrameSkip:         cfg.FrameSkip,
		EntranceRatio:     cfg.EntranceRatio,
		SnapshotDir:       cfg.SnapshotDir,
		CaptureInterval:   cfg.CaptureInterval,
		HandHistory:       cfg.HandHistory,
		HandAssignment:    assignment,
		HandMatchDistance: cfg.HandMatchDistance,
		MaxIdleFrames:     cfg.MaxIdleFrames,
		Notifier:          notifiers,
		Store:             st,
		SourceName:        cfg.Input,
		Progress:          true,
	})
	if err != nil {
		objects.Close()
		if hands != nil {
			hands.Close()
		}
		return fmt.Errorf("failed to create app: %w", err)
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.ListenAddr != "" {
		a.OnFrame(stream.Publish)

		srv := server.New(server.Config{
			StaticDir: findWebDir(),
			Store:     st,
			Stream:    stream,
			Events:    events,
			Count:     a.Count,
		})
		fmt.Printf("Starting server on %s\n", cfg.ListenAddr)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
				log.Printf("Server failed: %v", err)
			}
		}()
	}

	if !*withTray {
		return analyze(ctx, a, cfg)
	}

	t := tray.New()
	t.OnQuit(cancel)
	if cfg.ListenAddr != "" {
		t.OnOpen(func() { openBrowser(dashboardURL(cfg.ListenAddr)) })
	}
	a.OnEntry(func(ev tracking.CrossingEvent) { t.SetCount(ev.Total) })

	done := make(chan error, 1)
	go func() {
		err := analyze(ctx, a, cfg)
		done <- err
		if err != nil {
			t.SetStatus("Failed")
		} else {
			t.SetStatus("Finished")
		}
		// Keep the tray up after a finite video so the count stays visible.
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()

	cancel()
	return <-done
}

// analyze runs the pipeline to completion and writes the report. A run
// that stopped on a read error still gets its report.
func analyze(ctx context.Context, a *app.App, cfg *config.Config) error {
	stats, runErr := a.Run(ctx)
	if runErr != nil && stats.Started.IsZero() {
		return fmt.Errorf("analysis failed: %w", runErr)
	}

	r := report.Build(stats, cfg.Input, filepath.Join(cfg.OutputDir, outputVideo), a.RunID())
	path, err := report.Write(cfg.OutputDir, r)
	if err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to write report: %w", err))
	}
	chart, err := report.WriteChart(cfg.OutputDir, r)
	if err != nil {
		log.Printf("Failed to write chart: %v", err)
	}

	fmt.Printf("Total customers: %d\n", r.Statistics.TotalCustomers)
	fmt.Printf("Report saved to: %s\n", path)
	if chart != "" {
		fmt.Printf("Chart saved to: %s\n", chart)
	}
	if runErr != nil {
		return fmt.Errorf("analysis stopped: %w", runErr)
	}
	return nil
}

func newObjectDetector(kind string, cfg detector.Config) (detector.ObjectDetector, error) {
	switch kind {
	case "dnn":
		return detector.NewDNNDetector(cfg)
	case "sidecar":
		return detector.NewSidecarTracker(cfg)
	case "mock":
		log.Println("Using mock detector: no objects will be detected")
		return detector.NewMockObjectDetector(), nil
	}
	return nil, fmt.Errorf("unknown detector %q", kind)
}

func dashboardURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}

// findWebDir searches for the dashboard directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.retailsight/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if absPath, err := filepath.Abs(p); err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	homeWebDir := filepath.Join(homeDir, ".retailsight", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}
