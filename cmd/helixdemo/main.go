// Command helixdemo runs an in-process echo service on top of the
// kernel library: one process, a channel pair, a server thread driven
// by a port, and a client issuing calls. It exists to exercise the
// library end to end and to expose its metrics for scraping.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/helixos/kernel/internal/infrastructure/config"
	"github.com/helixos/kernel/internal/infrastructure/logging"
	"github.com/helixos/kernel/kernel/object"
	"github.com/helixos/kernel/kernel/port"
	"github.com/helixos/kernel/kernel/status"
	"github.com/helixos/kernel/kernel/sys"
)

func main() {
	metricsAddr := flag.String("metrics", ":9464", "Prometheus metrics listen address")
	interval := flag.Duration("interval", time.Second, "Delay between demo calls")
	flag.Parse()

	cfg := config.LoadOrDefault()
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	k := sys.New(cfg, logger)
	proc := k.CreateProcess("helixdemo")

	c0, c1, st := k.ChannelCreate(proc)
	if st != status.OK {
		logger.Fatal("channel create failed", zap.String("status", st.String()))
	}
	prt, st := k.PortCreate(proc)
	if st != status.OK {
		logger.Fatal("port create failed", zap.String("status", st.String()))
	}

	const readableKey = 1
	st = k.ObjectWaitAsync(proc, c1, prt, readableKey,
		object.SignalReadable|object.SignalPeerClosed, port.ObserveRepeating)
	if st != status.OK {
		logger.Fatal("wait async failed", zap.String("status", st.String()))
	}

	// Echo server: drain the port, answer every readable request.
	server := k.CreateThread(proc)
	go func() {
		for {
			pkt, st := k.PortWait(server, prt, time.Time{})
			if st != status.OK {
				logger.Info("server stopping", zap.String("status", st.String()))
				return
			}
			if pkt.Key != readableKey {
				continue
			}
			for {
				txid, data, _, _, _, st := k.ChannelRead(server.Process(), c1, 65536, 64, 0)
				if st != status.OK {
					break
				}
				reply := append([]byte("echo: "), data...)
				if st := k.ChannelWrite(server.Process(), c1, txid, reply, nil); st != status.OK {
					logger.Warn("reply failed", zap.String("status", st.String()))
				}
			}
		}
	}()

	// Client: one call per tick.
	client := k.CreateThread(proc)
	go func() {
		seq := 0
		for range time.Tick(*interval) {
			seq++
			req := []byte(fmt.Sprintf("ping %d", seq))
			res, st := k.ChannelCall(client, c0, req, nil, time.Now().Add(5*time.Second), 65536, 64)
			if st != status.OK {
				logger.Warn("call failed",
					zap.String("status", st.String()),
					zap.String("read_status", res.ReadStatus.String()))
				continue
			}
			logger.Info("call round trip", zap.ByteString("reply", res.Data))
		}
	}()

	http.Handle("/metrics", promhttp.HandlerFor(k.Metrics().Registry(), promhttp.HandlerOpts{}))
	go func() {
		logger.Info("metrics listening", zap.String("addr", *metricsAddr))
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			logger.Fatal("metrics server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")
	k.HandleClose(proc, c0)
	k.HandleClose(proc, c1)
	k.HandleClose(proc, prt)
}
