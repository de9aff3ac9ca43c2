package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ayusman/keyfinger/internal/coach"
	"github.com/ayusman/keyfinger/internal/engine"
	"github.com/ayusman/keyfinger/internal/metrics"
	"github.com/ayusman/keyfinger/internal/server"
	"github.com/ayusman/keyfinger/internal/store"
	"github.com/ayusman/keyfinger/internal/tray"
)

func serveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context())
		},
	}

	cmd.Flags().String("addr", ":8000", "Listen address")
	cmd.Flags().String("static-dir", "", "Directory of static web files")
	cmd.Flags().Int("camera", -1, "Camera device index")
	cmd.Flags().String("camera-url", "", "HTTP snapshot URL")
	cmd.Flags().StringP("output", "o", "", "Directory for annotated images")
	cmd.Flags().Bool("tray", false, "Show a system tray indicator")
	cmd.Flags().Bool("coach", true, "Judge attributions against the touch-typing chart")

	a.bind(cmd, map[string]string{
		"addr":       "server.addr",
		"static-dir": "server.static_dir",
		"camera":     "camera.device",
		"camera-url": "camera.url",
		"output":     "output.dir",
		"tray":       "tray.enabled",
		"coach":      "coach.enabled",
	})

	return cmd
}

func (a *app) runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := a.component("main")

	cal, err := a.openCalibrations()
	if err != nil {
		return err
	}
	defer cal.Close()

	d, err := a.openDetector()
	if err != nil {
		return err
	}

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	hub := server.NewHub(a.component("events"))

	var ind *tray.Tray
	if a.settings.Tray.Enabled {
		ind = tray.New(a.settings.Coach.Enabled)
	}

	opts := []engine.Option{
		engine.WithMetrics(m),
		engine.OnCalibration(hub.PublishCalibration),
		engine.OnAttribution(hub.PublishAttribution),
	}
	if cal.db != nil {
		opts = append(opts, engine.OnAttribution(historyRecorder(cal.db, a.component("history"))))
	}
	if ind != nil {
		opts = append(opts, engine.OnAttribution(ind.ObserveAttribution))
	}

	e := a.newEngine(d, cal.store, opts...)
	defer e.Close()

	src, err := a.openSource()
	if err != nil {
		// Uploads still work without a camera.
		log.WithError(err).Warn("frame source unavailable")
	}
	if src != nil {
		defer src.Close()
	}

	ann, err := a.openAnnotator()
	if err != nil {
		return err
	}

	staticDir := a.settings.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		log.WithField("dir", staticDir).Info("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Engine:    e,
		Source:    src,
		Annotator: ann,
		History:   cal.db,
		Metrics:   m,
		Events:    hub,
		Log:       a.component("server"),
	})

	log.WithFields(logrus.Fields{
		"addr":      a.settings.Server.Addr,
		"backend":   a.settings.Calibration.Backend,
		"reference": string(e.Reference()),
		"camera":    src != nil,
	}).Info("starting keyfinger")

	if ind == nil {
		return srv.ListenAndServe(ctx, a.settings.Server.Addr)
	}

	return runWithTray(ctx, stop, ind, e, func(ctx context.Context) error {
		return srv.ListenAndServe(ctx, a.settings.Server.Addr)
	}, dashboardURL(a.settings.Server.Addr), log)
}

// runWithTray runs serve in the background while the tray owns the main
// goroutine. Quitting the tray stops serve and vice versa.
func runWithTray(ctx context.Context, stop context.CancelFunc, ind *tray.Tray, e *engine.Engine,
	serve func(context.Context) error, url string, log *logrus.Entry) error {
	ind.OnToggle(func(on bool) {
		if on {
			e.SetCoach(coach.New(nil))
		} else {
			e.SetCoach(nil)
		}
		log.WithField("coaching", on).Info("coaching toggled")
	})
	ind.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			log.WithError(err).Warn("could not open browser")
		}
	})
	ind.OnQuit(stop)

	errCh := make(chan error, 1)
	go func() {
		err := serve(ctx)
		ind.Quit()
		errCh <- err
	}()

	ind.Run()
	stop()
	return <-errCh
}

// historyRecorder returns an attribution observer writing to the database.
func historyRecorder(db *store.Store, log *logrus.Entry) func(*engine.Attribution) {
	repo := db.Attributions()
	return func(a *engine.Attribution) {
		if err := repo.Create(store.FromEngine(a)); err != nil {
			log.WithError(err).WithField("key", a.Key).Warn("failed to record attribution")
		}
	}
}

func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.keyfinger/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".keyfinger", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
