package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/msardana/leanplay/internal/app"
	"github.com/msardana/leanplay/internal/capture"
	"github.com/msardana/leanplay/internal/config"
	"github.com/msardana/leanplay/internal/event"
	"github.com/msardana/leanplay/internal/gaze"
	"github.com/msardana/leanplay/internal/playback"
	"github.com/msardana/leanplay/internal/sensor"
	"github.com/msardana/leanplay/internal/server"
	"github.com/msardana/leanplay/internal/store"
	"github.com/msardana/leanplay/internal/telemetry"
	"github.com/msardana/leanplay/internal/tray"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	addr := flag.String("addr", "", "override the server listen address")
	useTray := flag.Bool("tray", false, "run with a system tray icon")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	fmt.Println("leanplay - lean-controlled playback")

	st, err := store.New(dataPath(cfg.Store.Path))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	transport, err := newTransport(cfg.Transport)
	if err != nil {
		log.Fatalf("Failed to open transport: %v", err)
	}

	deps := app.Deps{
		Bus:          event.NewBus(),
		Store:        st,
		Transport:    transport,
		SteeringLink: newLinkFactory(cfg.Sensors.Steering),
		VolumeLink:   newLinkFactory(cfg.Sensors.Volume),
	}

	var camera capture.Camera
	if cfg.Gaze.Enabled {
		camera = capture.NewCamera(cfg.Gaze.DeviceID)
		detector, err := gaze.NewCascadeDetector(cfg.Gaze.CascadeFile)
		if err != nil {
			log.Fatalf("Failed to load face cascade: %v", err)
		}
		deps.Tracker = gaze.NewTracker(gaze.TrackerConfig{
			Interval:     cfg.Gaze.Interval(),
			Window:       cfg.Gaze.Window,
			OnThreshold:  cfg.Gaze.OnThreshold,
			OffThreshold: cfg.Gaze.OffThreshold,
		}, camera, detector, deps.Bus)
	}

	application := app.New(cfg, deps)

	if cfg.MQTT.Enabled {
		publisher, err := telemetry.Connect(telemetry.Config{
			BrokerURL:   cfg.MQTT.BrokerURL,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, application.Bus())
		if err != nil {
			log.Printf("MQTT telemetry unavailable: %v", err)
		} else {
			publisher.Start()
			defer publisher.Stop()
		}
	}

	if err := application.Start(); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}
	defer application.Stop()

	srvCfg := server.Config{
		StaticDir:  findWebDir(),
		Store:      st,
		Bus:        application.Bus(),
		Steering:   application.Steering(),
		Volume:     application.Volume(),
		Player:     application.Controller(),
		Camera:     camera,
		SessionID:  application.SessionID,
		Enabled:    application.Controller().Enabled,
		SetEnabled: application.SetEnabled,
	}
	if deps.Tracker != nil {
		srvCfg.Gaze = deps.Tracker
	}
	srv := server.New(srvCfg)
	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Server.Addr)
		if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	if *useTray {
		runTray(application, cfg.Server.Addr)
		return
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	fmt.Println("shutting down")
}

// runTray blocks on the system tray loop, mirroring mode and phase changes
// into the menu.
func runTray(application *app.App, addr string) {
	t := tray.New()
	t.OnToggle(application.SetEnabled)
	t.OnSettings(func() { openBrowser(dashboardURL(addr)) })
	t.OnQuit(func() {})

	sub := application.Bus().Subscribe(64)
	go func() {
		for ev := range sub {
			switch e := ev.(type) {
			case event.ModeChanged:
				t.SetMode(e.Mode)
			case event.PhaseChanged:
				if e.Chain == "steering" {
					t.SetPhase(e.Phase)
				}
			}
		}
	}()
	defer application.Bus().Unsubscribe(sub)

	t.Run()
}

// dashboardURL turns the server listen address into a browsable URL,
// substituting localhost for wildcard hosts.
func dashboardURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// openBrowser opens the URL with the platform's default browser.
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
		log.Printf("Failed to open %s: %v", url, err)
	}
}

// newTransport builds the configured media transport.
func newTransport(cfg config.TransportConfig) (playback.Transport, error) {
	switch cfg.Kind {
	case "mock":
		return playback.NewMockTransport(false), nil
	default:
		return playback.DialMPV(cfg.SocketPath)
	}
}

// newLinkFactory builds the configured sensor link for one chain, or nil for
// kind "none".
func newLinkFactory(cfg config.SensorConfig) app.LinkFactory {
	switch cfg.Kind {
	case "ws":
		return func(h sensor.Handler) sensor.Link {
			return sensor.NewWSLink(cfg.URL, h)
		}
	case "serial":
		return func(h sensor.Handler) sensor.Link {
			return sensor.NewSerialLink(cfg.Device, cfg.BaudRate, h)
		}
	default:
		return nil
	}
}

// dataPath places a bare filename under ~/.leanplay, creating the directory.
// Absolute and relative paths pass through untouched.
func dataPath(path string) string {
	if filepath.Base(path) != path {
		return config.ExpandPath(path)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	dir := filepath.Join(homeDir, ".leanplay")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return path
	}
	return filepath.Join(dir, path)
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.leanplay/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	// Check relative paths from current working directory
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

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".leanplay", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
