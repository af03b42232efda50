// AllPress orchestrates a fleet of office printers and wide-format plotters:
// submission, admission control, protocol translation and dispatch through
// the platform spooler.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"allpress/config"
	"allpress/directory"
	"allpress/logger"
	"allpress/queue"
	"allpress/spooler"
	"allpress/storage"
	"allpress/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: search standard locations)")
	svcAction := flag.String("service", "", "service action: install, uninstall, start, stop, run")
	flag.Parse()

	if *svcAction != "" {
		if err := handleServiceAction(*svcAction); err != nil {
			fmt.Fprintln(os.Stderr, "service:", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	runInteractive(ctx, *configPath)
}

// runInteractive builds the component graph and runs until the context is
// canceled. The same entry point serves interactive and service mode.
func runInteractive(ctx context.Context, configPath string) {
	var (
		settings config.Settings
		cfgFile  string
		err      error
	)
	if configPath != "" {
		settings, err = config.LoadFile(configPath)
		cfgFile = configPath
	} else {
		settings, cfgFile, err = config.Load("allpress.toml")
	}

	log := logger.New(logger.ParseLevel(settings.Log.Level), settings.Log.Dir, 1000)
	defer log.Close()
	if err != nil {
		log.Error("config load failed, using defaults: " + err.Error())
	} else if cfgFile != "" {
		log.Info("loaded configuration from " + cfgFile)
	}

	store, err := storage.NewSQLiteStore(settings.Database.Path, log)
	if err != nil {
		log.Error("metadata store unavailable, continuing without persistence: " + err.Error())
		store = nil
	} else {
		defer store.Close()
	}

	gateway := spooler.NewIPPGateway(settings.Spooler.Host, settings.Spooler.Port)

	dir := directory.New(gateway, log, directory.Config{
		DialTimeout:      time.Duration(settings.Network.DialTimeoutMS) * time.Millisecond,
		DiscoveryTimeout: time.Duration(settings.Discovery.TimeoutMS) * time.Millisecond,
		Subnet:           settings.Discovery.Subnet,
		SNMPCommunity:    settings.Spooler.Community,
	})

	q := queue.New(settings.Queue.MaxWorkers, log)
	q.SetGateway(gateway)
	q.SetDirectory(dir)
	if settings.Queue.MaxQueueDepth > 0 {
		q.SetMaxQueueDepth(settings.Queue.MaxQueueDepth)
	}

	hub := ws.NewHub()
	defer hub.Shutdown()
	wireCallbacks(ctx, q, dir, hub, store, log)

	if _, err := dir.Discover(ctx); err != nil {
		log.Warn("initial discovery failed: " + err.Error())
	}
	dir.StartMonitoring(ctx, time.Duration(settings.Discovery.MonitorIntervalS)*time.Second)
	defer dir.StopMonitoring()

	q.Start()
	defer q.Stop()

	srv := startWebSocketServer(settings.Server.Listen, hub, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("AllPress running")
	<-ctx.Done()
	log.Info("shutting down")
}

// wireCallbacks connects the queue and directory events to the websocket
// hub and, when available, the metadata store.
func wireCallbacks(ctx context.Context, q *queue.Queue, dir *directory.Directory, hub *ws.Hub, store *storage.SQLiteStore, log *logger.Logger) {
	q.SetJobStatusCallback(func(j queue.PrintJob) {
		hub.Broadcast(ws.Message{
			Type: ws.MessageTypeJobStatus,
			Data: map[string]interface{}{
				"job_id":   j.ID,
				"printer":  j.Printer,
				"status":   j.Status.String(),
				"spool_id": j.SpoolID,
				"error":    j.ErrorMessage,
			},
		})
		if store != nil {
			if err := store.SaveJob(ctx, j); err != nil {
				log.Warn("persist job: " + err.Error())
			}
		}
	})

	q.SetProgressCallback(func(jobID int, progress float64) {
		hub.Broadcast(ws.Message{
			Type: ws.MessageTypeJobProgress,
			Data: map[string]interface{}{"job_id": jobID, "progress": progress},
		})
	})

	dir.RegisterStatusCallback(func(p directory.PrinterInfo) {
		hub.Broadcast(ws.Message{
			Type: ws.MessageTypePrinterStatus,
			Data: map[string]interface{}{
				"name":      p.Name,
				"uri":       p.URI,
				"is_online": p.IsOnline,
				"status":    p.Status,
			},
		})
		if store != nil {
			if err := store.StoreDevice(ctx, p); err != nil {
				log.Warn("persist device: " + err.Error())
			}
		}
	})
}

// startWebSocketServer exposes the broadcast channel at /ws.
func startWebSocketServer(listen string, hub *ws.Hub, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.UpgradeHTTP(w, r)
		if err != nil {
			log.Warn("websocket upgrade failed: " + err.Error())
			return
		}
		defer conn.Close()

		id := uuid.NewString()
		ch := make(chan ws.Message, 10)
		hub.Register(id, ch)
		defer hub.Unregister(id)

		// Reader goroutine: drain client frames and detect disconnect.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteMessage(&msg, 10*time.Second); err != nil {
					return
				}
			}
		}
	})

	srv := &http.Server{Addr: listen, Handler: mux}
	go func() {
		log.Info("websocket listener on " + listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("websocket listener: " + err.Error())
		}
	}()
	return srv
}
