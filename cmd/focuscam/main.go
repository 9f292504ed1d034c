// Command focuscam opens a USB camera with autofocus disabled and lets the
// focus be adjusted from the keyboard or a browser preview.
//
// Keys: A/D move the focus down/up, S resets it, Q, Escape or Ctrl-C quit.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/focuscam/focuscam/internal/config"
	"github.com/focuscam/focuscam/internal/keyboard"
	"github.com/focuscam/focuscam/internal/logging"
	"github.com/focuscam/focuscam/internal/probe"
	"github.com/focuscam/focuscam/pkg/control"
	"github.com/focuscam/focuscam/pkg/driver"
	"github.com/focuscam/focuscam/pkg/preview"
	"github.com/focuscam/focuscam/pkg/session"

	// Backends register themselves on import. The test backend needs no
	// hardware: -backend test.
	_ "github.com/focuscam/focuscam/pkg/driver/v4l2"
	_ "github.com/focuscam/focuscam/pkg/driver/videotest"
	_ "github.com/focuscam/focuscam/pkg/driver/webcam"
)

var logger = logging.NewLogger("focuscam")

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	device := flag.Int("device", -1, "Camera index, overrides device_id")
	backends := flag.String("backend", "", "Comma separated backend preference, overrides backends")
	listen := flag.String("preview", "", "Preview listen address, overrides preview.listen")
	logLevel := flag.String("log-level", "", "Log level, overrides log_level")
	list := flag.Bool("list", false, "List capture devices and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("%v", err)
		return exitConfig
	}
	if *device >= 0 {
		cfg.DeviceID = *device
	}
	if *backends != "" {
		cfg.Backends = strings.Split(*backends, ",")
	}
	if *listen != "" {
		cfg.Preview.Listen = *listen
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		logger.Errorf("invalid flags: %v", err)
		return exitConfig
	}
	logging.SetLevel(cfg.LogLevel)

	if *list {
		resolved, err := driver.GetManager().Resolve(cfg.Backends)
		if err != nil {
			logger.Errorf("%v", err)
			return exitFailed
		}
		if err := probe.ListDevices(os.Stdout, resolved); err != nil {
			return exitFailed
		}
		return exitOK
	}

	cam := session.New(cfg.SessionOptions())
	if err := cam.Connect(); err != nil {
		if errors.Is(err, session.ErrNoBackendSucceeded) {
			logger.Errorf("cannot open camera %d, check the cable and that no other program uses it: %v", cfg.DeviceID, err)
		} else {
			logger.Errorf("connect: %v", err)
		}
		return exitFailed
	}

	report, err := cam.Configure()
	if err != nil {
		cam.Disconnect()
		logger.Errorf("configure: %v", err)
		return exitFailed
	}
	if !report.Focus.Supported() {
		logger.Warn("device has no focus control, focus keys will have no effect")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands := make(chan control.Command, 16)
	loop := &control.Loop{
		Camera:                 cam,
		Commands:               commands,
		MaxConsecutiveFailures: cfg.Advanced.MaxConsecutiveFailures,
	}

	previewDone := make(chan struct{})
	if cfg.Preview.Listen != "" {
		srv := preview.New(cfg.PreviewConfig(), commands)
		loop.Sinks = append(loop.Sinks, srv)
		go func() {
			defer close(previewDone)
			if err := srv.Start(ctx); err != nil {
				logger.Errorf("%v", err)
			}
		}()
	} else {
		close(previewDone)
	}

	kb, err := keyboard.Open(os.Stdin)
	if err != nil {
		logger.Warnf("keyboard control disabled: %v", err)
	} else {
		defer kb.Close()
		go forwardKeys(ctx, kb.Keys(ctx), cfg.Keymap(), commands)
		logger.Info(control.KeyHelp)
	}

	err = loop.Run(ctx)
	stop()
	<-previewDone

	if err != nil {
		logger.Errorf("capture stopped: %v", err)
		return exitFailed
	}
	return exitOK
}

func forwardKeys(ctx context.Context, keys <-chan byte, keymap control.Keymap, commands chan<- control.Command) {
	for key := range keys {
		cmd, ok := keymap.Command(key)
		if !ok {
			continue
		}
		select {
		case commands <- cmd:
		case <-ctx.Done():
			return
		}
	}
}
