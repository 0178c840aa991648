// Command fixclient is a minimal runnable FIX session client: it loads
// a YAML config, starts one session against it, logs every upcall, and
// exposes Prometheus metrics until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/finalex-io/fixgo/pkg/fixcodec"
	"github.com/finalex-io/fixgo/pkg/fixconfig"
	"github.com/finalex-io/fixgo/pkg/fixlog"
	"github.com/finalex-io/fixgo/pkg/fixsession"
	"github.com/finalex-io/fixgo/pkg/fixtrace"
)

type loggingHandler struct {
	fixsession.NopHandler
	logger *zap.Logger
}

func (h loggingHandler) OnLogon(sessionKey string, cfg fixsession.Config) {
	h.logger.Info("logged on", zap.String("session_key", sessionKey))
}

func (h loggingHandler) OnAppMessage(sessionKey string, msg *fixcodec.InboundMessage, cfg fixsession.Config) {
	h.logger.Info("application message", zap.String("session_key", sessionKey), zap.String("msg_type", msg.MsgType), zap.Int("seq_num", msg.SeqNum))
}

func (h loggingHandler) OnSessionMessage(sessionKey string, msg *fixcodec.InboundMessage, cfg fixsession.Config) {
	h.logger.Warn("session-level message", zap.String("session_key", sessionKey), zap.String("msg_type", msg.MsgType), zap.Int("seq_num", msg.SeqNum))
}

func (h loggingHandler) OnLogout(sessionKey string, reason fixsession.LogoutReason, cfg fixsession.Config) {
	h.logger.Info("logged out", zap.String("session_key", sessionKey), zap.Int("reason_kind", int(reason.Kind)), zap.Error(reason.Err))
}

func main() {
	configPath := flag.String("config", "fixclient.yaml", "path to the session configuration YAML file")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics on")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("warning: .env file not found, using process environment")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	zapLogger, err := fixlog.New(logLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	cfg, err := fixconfig.LoadSessionConfig(*configPath)
	if err != nil {
		zapLogger.Fatal("failed to load session configuration", zap.Error(err))
	}

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			zapLogger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := fixtrace.Setup(ctx)
	if err != nil {
		zapLogger.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	sess, err := fixsession.Start(ctx, cfg, loggingHandler{logger: zapLogger}, fixsession.Options{Logger: zapLogger})
	if err != nil {
		zapLogger.Fatal("failed to start session", zap.Error(err))
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	zapLogger.Info("shutting down", zap.String("session_key", sess.Key()))
	if err := sess.Stop(); err != nil {
		zapLogger.Error("error stopping session", zap.Error(err))
	}
}
