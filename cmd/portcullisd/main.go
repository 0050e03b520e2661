// Command portcullisd runs the portcullis forwarding proxy daemon: it binds
// a single listener that speaks both absolute-URI HTTP relay and HTTP
// CONNECT tunneling, gated by an optional Basic-auth challenge backed by a
// SQLite credential store.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/portcullis-proxy/portcullis/internal/authn"
	"github.com/portcullis-proxy/portcullis/internal/buildinfo"
	"github.com/portcullis-proxy/portcullis/internal/config"
	"github.com/portcullis-proxy/portcullis/internal/credstore"
	"github.com/portcullis-proxy/portcullis/internal/metrics"
	"github.com/portcullis-proxy/portcullis/internal/proxy"
	"github.com/portcullis-proxy/portcullis/internal/requestlog"
)

func main() {
	log.Printf("portcullisd %s (commit %s, built %s)", buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime)

	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		fatalf("%v", err)
	}

	store, err := credstore.Open(envCfg.CredDBPath)
	if err != nil {
		fatalf("credstore open: %v", err)
	}
	defer store.Close()
	log.Printf("credential store opened at %s", envCfg.CredDBPath)

	authenticator := &authn.Authenticator{Enabled: envCfg.AuthEnabled, Store: store}
	if !envCfg.AuthEnabled {
		log.Println("warning: auth disabled, every connection will be forwarded unauthenticated")
	}

	metricsMgr := metrics.NewManager()

	requestlogRepo := requestlog.NewRepo(
		envCfg.RequestLogDir,
		int64(envCfg.RequestLogDBMaxMB)*1024*1024,
		envCfg.RequestLogDBRetainCount,
	)
	if err := requestlogRepo.Open(); err != nil {
		fatalf("requestlog repo open: %v", err)
	}
	requestlogSvc := requestlog.NewService(requestlog.ServiceConfig{Repo: requestlogRepo})
	requestlogSvc.Start()
	log.Printf("request log service started, dir=%s", envCfg.RequestLogDir)

	events := compositeEmitter{logSvc: requestlogSvc, metricsMgr: metricsMgr}

	forwarder := proxy.NewForwarder(proxy.ForwarderConfig{
		DialTimeout: envCfg.DialTimeout,
		Events:      events,
		MetricsSink: metricsMgr,
	})
	tunneler := proxy.NewTunneler(proxy.TunnelerConfig{
		DialTimeout: envCfg.DialTimeout,
		IdleTimeout: envCfg.TunnelIdleTimeout,
		Events:      events,
		MetricsSink: metricsMgr,
	})
	dispatcher := proxy.NewDispatcher(authenticator, forwarder, tunneler)

	server := proxy.NewServer(proxy.ServerConfig{
		Addr:             fmt.Sprintf("%s:%d", envCfg.ListenAddress, envCfg.Port),
		Dispatcher:       dispatcher,
		Metrics:          metricsMgr,
		SnapshotSchedule: envCfg.SnapshotSchedule,
	})
	if err := server.Listen(); err != nil {
		fatalf("%v", err)
	}
	log.Printf("portcullisd listening on %s", server.Addr())

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Serve(); err != nil {
			serverErrCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runtimeErr error
	select {
	case sig := <-quit:
		log.Printf("received signal %s, shutting down...", sig)
	case err := <-serverErrCh:
		runtimeErr = err
		log.Printf("server runtime error (%v), shutting down...", err)
	}

	if err := server.Close(); err != nil {
		log.Printf("server close error: %v", err)
	}
	log.Println("listener closed, in-flight connections left to drain")

	requestlogSvc.Stop()
	log.Println("request log service stopped")
	if err := requestlogRepo.Close(); err != nil {
		log.Printf("requestlog repo close error: %v", err)
	}

	if runtimeErr != nil {
		fatalf("runtime server error: %v", runtimeErr)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}

// compositeEmitter dispatches request-log entries to both requestlog and
// metrics: the request-log service persists the summary row, and the metrics
// manager adds the egress bytes to its per-domain totals. RequestFinished
// events are discarded.
type compositeEmitter struct {
	logSvc     *requestlog.Service
	metricsMgr *metrics.Manager
}

func (c compositeEmitter) EmitRequestFinished(proxy.RequestFinishedEvent) {}

func (c compositeEmitter) EmitRequestLog(ev proxy.RequestLogEntry) {
	c.metricsMgr.AddDomainBytes(ev.TargetDomain, ev.EgressBytes)
	c.logSvc.EmitRequestLog(ev)
}
