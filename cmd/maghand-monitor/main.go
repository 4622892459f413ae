// Command maghand-monitor follows a running keyboard over its UART.
//
// The firmware writes JSON log records to the UART when its profile selects
// log format "json". This command reads them from a serial port and serves
// them to websocket clients: key transitions as "key" frames and every other
// record as a "log" frame.
//
// Usage:
//
//	maghand-monitor [options] [port]
//
// Without a port argument the only USB serial adapter is used.
//
// Options:
//
//	-baud int       UART baud rate (default: 115200)
//	-listen string  websocket listen address (default: localhost:8383)
//	-list           list serial ports and exit
//	-v              enable verbose (debug) logging
//	-json           use JSON log format
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"

	"github.com/ardnew/maghand/monitor"
	"github.com/ardnew/maghand/pkg"
	"github.com/ardnew/maghand/pkg/usbid"
)

const component = pkg.ComponentMonitor

// defaultBaud is the firmware's UART rate.
const defaultBaud = 115200

func main() {
	baud := flag.Int("baud", defaultBaud, "UART baud rate")
	listen := flag.String("listen", "localhost:8383", "websocket listen address")
	list := flag.Bool("list", false, "list serial ports and exit")
	verbose := flag.Bool("v", false, "enable verbose (debug) logging")
	jsonLog := flag.Bool("json", false, "use JSON log format")
	flag.Parse()

	pkg.SetLogLevel(slog.LevelInfo)
	if *verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	}
	if *jsonLog {
		pkg.SetLogFormat(pkg.LogFormatJSON)
	}

	db := usbid.New()
	if !db.Load() {
		pkg.LogDebug(component, "no usb.ids database found")
	}

	var ports []monitor.Port
	if *list || flag.NArg() < 1 {
		var err error
		if ports, err = monitor.Ports(db); err != nil {
			pkg.LogError(component, "failed to list serial ports", "error", err)
			os.Exit(1)
		}
	}
	if *list {
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	portName := flag.Arg(0)
	if portName == "" {
		p, err := monitor.PickPort(ports)
		if err != nil {
			pkg.LogError(component, "no serial port given", "error", err,
				"usage", "maghand-monitor [options] [port]")
			os.Exit(1)
		}
		pkg.LogInfo(component, "using serial port", "port", p.String())
		portName = p.Name
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, portName, *baud, *listen); err != nil && !errors.Is(err, context.Canceled) {
		pkg.LogError(component, "monitor failed", "error", err)
		os.Exit(1)
	}
	pkg.LogInfo(component, "shutting down")
}

func run(ctx context.Context, portName string, baud int, listen string) error {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", portName, err)
	}
	defer port.Close()

	hub := monitor.NewHub(monitor.HubConfig{})
	relay := monitor.NewRelay(port, hub)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	pkg.LogInfo(component, "monitoring", "port", portName, "baud", baud, "listen", listen)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		err := relay.Run(gctx)
		stats := relay.Stats()
		pkg.LogInfo(component, "serial closed",
			"lines", stats.Lines, "keyEvents", stats.KeyEvents, "malformed", stats.Malformed)
		if gctx.Err() != nil {
			return gctx.Err()
		}
		if err == nil {
			err = errors.New("serial port closed")
		}
		return err
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Closing the port unblocks the relay's read.
		_ = port.Close()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	})
	return g.Wait()
}
