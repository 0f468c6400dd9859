// Package main provides the trackbox command line player.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/chzyer/readline"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/trackbox/internal/app/catalog"
	"github.com/osa030/trackbox/internal/app/notification"
	"github.com/osa030/trackbox/internal/app/playback"
	"github.com/osa030/trackbox/internal/infra/config"
	"github.com/osa030/trackbox/internal/infra/logger"
	"github.com/osa030/trackbox/internal/infra/metrics"
	"github.com/osa030/trackbox/internal/infra/process"
	"github.com/osa030/trackbox/internal/infra/tags"
)

var (
	app        = kingpin.New("trackbox", "Drive a command line audio player as a media player")
	configPath = app.Flag("config", "Path to config file (default: built-in defaults)").Envar("TRACKBOX_CONFIG").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// play command
	playCmd         = app.Command("play", "Play a directory, advancing to the next track when one ends")
	playDir         = playCmd.Arg("dir", "Music directory (default: library.dir)").String()
	playStart       = playCmd.Flag("start", "Index of the first track").Default("0").Int()
	playWatch       = playCmd.Flag("watch", "Reload the catalog when the directory changes").Bool()
	playMetricsAddr = playCmd.Flag("metrics-addr", "Serve Prometheus metrics on this address").String()

	// list command
	listCmd = app.Command("list", "List the playable tracks of a directory")
	listDir = listCmd.Arg("dir", "Music directory (default: library.dir)").String()

	// shell command
	shellCmd = app.Command("shell", "Control playback interactively")
	shellDir = shellCmd.Arg("dir", "Music directory (default: library.dir)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Output:     cfg.Log.Output,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	err = run(command, cfg)
	_ = logCloser.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the selected command. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(command string, cfg *config.Config) error {
	switch command {
	case playCmd.FullCommand():
		return runPlay(cfg, musicDir(*playDir, cfg))
	case listCmd.FullCommand():
		return runList(os.Stdout, musicDir(*listDir, cfg))
	case shellCmd.FullCommand():
		return runShell(cfg, musicDir(*shellDir, cfg))
	}
	return errors.Newf("unknown command: %s", command)
}

// musicDir returns arg, or the configured library directory when arg is empty.
func musicDir(arg string, cfg *config.Config) string {
	if arg != "" {
		return arg
	}
	return cfg.Library.Dir
}

// newController wires the playback controller from configuration.
func newController(cfg *config.Config) (*playback.Controller, error) {
	launcher, err := process.NewLauncherFromConfig(cfg.Player)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create launcher")
	}

	proc := process.NewController(launcher, process.NewSignaller(), process.Config{
		KillGrace: cfg.Player.KillGrace(),
	})

	return playback.NewController(catalog.New(tags.NewReader()), proc, playback.Config{
		InitialVolume: cfg.Playback.InitialVolume,
		StartupGrace:  cfg.Playback.StartupGrace(),
	}), nil
}

func runList(out io.Writer, dir string) error {
	if dir == "" {
		return errors.New("no music directory given")
	}

	cat := catalog.New(tags.NewReader())
	n, err := cat.Load(dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%d tracks in %s\n", n, cat.Dir())
	printTracks(out, cat.Tracks(), -1)
	return nil
}

func runPlay(cfg *config.Config, dir string) error {
	if dir == "" {
		return errors.New("no music directory given")
	}

	ctrl, err := newController(cfg)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if n := ctrl.LoadTracks(dir); n == 0 {
		return errors.Newf("no playable tracks in %s", dir)
	}

	addr := cfg.Metrics.Addr
	if *playMetricsAddr != "" {
		addr = *playMetricsAddr
	}
	if addr != "" {
		server, err := startMetricsServer(addr)
		if err != nil {
			return err
		}
		defer shutdownServer(server)
	}

	if *playWatch || cfg.Library.Watch {
		startWatcher(ctx, ctrl, dir, cfg.Library.WatchDebounce())
	}

	notifier := notification.NewManager()
	defer notifier.Close()
	notifier.Subscribe(notification.SinkFunc(logNotification))
	go notifier.Run(ctx, ctrl.Events())

	if !ctrl.PlayTrack(*playStart) {
		return errors.Newf("failed to start track %d", *playStart)
	}

	ctrl.AutoAdvance(ctx, cfg.Playback.PollInterval())

	zlog.Info().Msg("Stopping playback")
	return nil
}

func runShell(cfg *config.Config, dir string) error {
	ctrl, err := newController(cfg)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "trackbox> ",
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return errors.Wrap(err, "failed to start shell")
	}
	defer rl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := notification.NewManager()
	defer notifier.Close()
	notifier.Subscribe(notification.SinkFunc(logNotification))
	go notifier.Run(ctx, ctrl.Events())

	sh := newShell(ctrl, rl.Stdout())
	notifier.Subscribe(notification.SinkFunc(sh.notify))
	if dir != "" {
		sh.exec("load " + dir)
	}

	go ctrl.AutoAdvance(ctx, cfg.Playback.PollInterval())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read command")
		}
		if sh.exec(line) {
			return nil
		}
	}
}

// startWatcher reloads the catalog whenever the directory changes.
func startWatcher(ctx context.Context, ctrl *playback.Controller, dir string, debounce time.Duration) {
	w := catalog.NewWatcher(dir, debounce, func() {
		ctrl.LoadTracks(dir)
	})
	go func() {
		if err := w.Run(ctx); err != nil {
			zlog.Error().Err(err).Msg("Catalog watcher stopped")
		}
	}()
}

// startMetricsServer serves /metrics with h2c (HTTP/2 cleartext) support.
func startMetricsServer(addr string) (*http.Server, error) {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return nil, errors.Wrap(err, "failed to register metrics")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	server := &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zlog.Info().Msgf("Serving metrics: addr=%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return server, nil
}

func shutdownServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("Failed to shutdown metrics server")
	}
}

// logNotification logs a playback event.
func logNotification(n notification.Notification) error {
	e := n.Event
	switch e.Type {
	case playback.EventTrackStarted:
		zlog.Info().Msgf("Now playing [%d] %s", e.Index, e.Track.DisplayName())
	case playback.EventCatalogLoaded:
		zlog.Info().Msgf("Catalog loaded: %d tracks", e.Count)
	default:
		zlog.Debug().Msgf("Event #%d: type=%s index=%d state=%s volume=%d", n.SequenceNo, e.Type, e.Index, e.State, e.Volume)
	}
	return nil
}
