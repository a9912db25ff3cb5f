package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/mindflex/internal/capture"
	"github.com/banshee-data/mindflex/internal/config"
	"github.com/banshee-data/mindflex/internal/db"
	"github.com/banshee-data/mindflex/internal/dispatch"
	"github.com/banshee-data/mindflex/internal/monitoring"
	"github.com/banshee-data/mindflex/internal/serialmux"
	"github.com/banshee-data/mindflex/internal/timeutil"
	"github.com/banshee-data/mindflex/internal/version"
)

const DEFAULT_DB_FILE = "mindflex.db"

// Main
func main() {
	flags := newCLIFlags(os.Args[0])
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if *flags.version {
		fmt.Println(version.String())
		return
	}

	cfg, err := flags.resolveConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if args := flags.Args(); len(args) > 0 && args[0] == "migrate" {
		path := cfg.GetDBPath()
		if path == "" {
			path = DEFAULT_DB_FILE
		}
		if err := db.RunMigrateCommand(args[1:], path, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := run(flags, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(flags *cliFlags, cfg *config.HeadsetConfig) error {
	if path := cfg.GetLogFile(); path != "" {
		logger, closer := monitoring.NewRotatingLogger(monitoring.RotatingLogOptions{Path: path, Compress: true}, os.Stderr)
		defer closer.Close()
		log.SetOutput(logger.Writer())
		monitoring.SetLogger(logger.Printf)
	}
	monitoring.SetDebug(cfg.GetDebug())
	log.Printf("starting %s", version.String())

	mode, err := flags.headsetMode()
	if err != nil {
		return err
	}

	d := dispatch.New(dispatch.Options{
		Verbose:   cfg.GetVerbose(),
		Threshold: cfg.GetThreshold(),
	})
	window := dispatch.NewWindow(cfg.GetWindowSize())
	d.Subscribe(window)
	if cfg.GetDebug() {
		d.Subscribe(serialmux.LogSubscriber{})
	}

	headset, err := openHeadset(mode, flags, cfg, d, window)
	if err != nil {
		return err
	}
	// the port is released on every exit path, whatever state the
	// synchronizer is in
	defer headset.Close()

	var store *db.DB
	if path := cfg.GetDBPath(); path != "" {
		store, err = db.NewDB(path)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer store.Close()
		d.Subscribe(db.NewStore(store, headset.connectionID, nil))
		log.Printf("storing records in %s", path)
	}

	triggers := dispatch.NewChannelSubscriber(0, 16)
	triggerID := d.Subscribe(triggers)

	// Create a wait group for the HTTP server, serial monitor, and trigger routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		// a transport failure ends the session
		defer stop()
		if err := headset.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor headset: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			d.Unsubscribe(triggerID)
			triggers.Close()
		}()
		runTriggerWorker(ctx, triggers.Triggers())
		log.Printf("trigger routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		headset.AttachAdminRoutes(mux)
		if store != nil {
			store.AttachAdminRoutes(mux)
		}

		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			monitoring.Debugf("got request %q", r.URL.Path)
			mux.ServeHTTP(w, r)
		})
		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: h,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("debug server listening on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("failed to start server: %v", err)
				stop()
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("session stats: %+v", d.Stats().Snapshot())
	log.Printf("Graceful shutdown complete")
	return nil
}

// runTriggerWorker handles attention triggers off the read loop. Actuation
// hooks in here; for now every trigger is logged.
func runTriggerWorker(ctx context.Context, triggers <-chan dispatch.Trigger) {
	for {
		select {
		case t, ok := <-triggers:
			if !ok {
				return
			}
			monitoring.Logf("attention threshold crossed: attention=%d threshold=%d", t.Attention, t.Threshold)
		case <-ctx.Done():
			return
		}
	}
}

// headset is the selected byte source plus whatever must be released with it.
type headset struct {
	serialmux.SerialMuxInterface
	connectionID string
	closers      []io.Closer
}

func (h *headset) Close() error {
	err := h.SerialMuxInterface.Close()
	for _, c := range h.closers {
		err = errors.Join(err, c.Close())
	}
	return err
}

func openHeadset(mode string, flags *cliFlags, cfg *config.HeadsetConfig, d *dispatch.Dispatcher, window *dispatch.Window) (*headset, error) {
	if cfg.GetCapturePath() != "" && mode != "serial" {
		log.Printf("ignoring -capture in %s mode", mode)
	}

	switch mode {
	case "disabled":
		log.Printf("headset disabled")
		return &headset{SerialMuxInterface: serialmux.NewDisabledSerialMux(d)}, nil

	case "dev":
		mux := serialmux.NewMockSerialMux(timeutil.RealClock{}, cfg.GetMockInterval(), d)
		mux.SetWindow(window)
		log.Printf("generating synthetic frames every %s", cfg.GetMockInterval())
		return &headset{SerialMuxInterface: mux, connectionID: mux.Connection().ID}, nil

	case "replay":
		port, err := capture.Open(*flags.replayPath)
		if err != nil {
			return nil, err
		}
		mux := serialmux.NewSerialMux(port, serialmux.NewConnection(*flags.replayPath), d)
		mux.SetWindow(window)
		log.Printf("replaying %s", *flags.replayPath)
		return &headset{SerialMuxInterface: mux, connectionID: mux.Connection().ID}, nil
	}

	opts := serialmux.PortOptions{BaudRate: cfg.GetBaudRate()}
	path := cfg.GetPort()

	if capturePath := cfg.GetCapturePath(); capturePath != "" {
		w, err := capture.Create(capturePath)
		if err != nil {
			return nil, err
		}
		factory := serialmux.SerialPortOpener(func(path string, mode *serialmux.SerialPortMode) (serialmux.SerialPorter, error) {
			port, err := serialmux.RealSerialPortFactory{}.Open(path, mode)
			if err != nil {
				return nil, err
			}
			return capture.Tee(port, w), nil
		})
		mux, err := serialmux.Connect(factory, path, opts, d)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to open headset: %w", err)
		}
		mux.SetWindow(window)
		log.Printf("capturing raw bytes from %s to %s", path, capturePath)
		return &headset{SerialMuxInterface: mux, connectionID: mux.Connection().ID, closers: []io.Closer{w}}, nil
	}

	mux, err := serialmux.NewRealSerialMux(path, opts, d)
	if err != nil {
		return nil, fmt.Errorf("failed to open headset: %w", err)
	}
	mux.SetWindow(window)
	log.Printf("connected to headset on %s at %d baud", path, cfg.GetBaudRate())
	return &headset{SerialMuxInterface: mux, connectionID: mux.Connection().ID}, nil
}
