// Command corsguard-demo serves a single API resource behind a CORS
// middleware whose policy is read from a policy file.
//
// Usage:
//
//	corsguard-demo [--policy policy.yaml] [--addr :8080] [--server http|fiber] [--print-policy]
//
// The environment (optionally populated from the file named by ENV_FILE,
// .env by default) may override any key of the policy file; see package
// policyfile. LOG_LEVEL=debug logs allowed requests as well as denied ones.
// On SIGHUP, the policy file is read again and the middleware reconfigured.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/jub0bs/corsguard"
	"github.com/jub0bs/corsguard/corsfiber"
	"github.com/jub0bs/corsguard/corsmetrics"
	"github.com/jub0bs/corsguard/policyfile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	resourcePath    = "/api/v1/resource"
	metricsPath     = "/metrics"
	shutdownTimeout = 10 * time.Second
)

// options are interpreted by github.com/jessevdk/go-flags.
type options struct {
	Policy      string `short:"p" long:"policy" default:"policy.yaml" description:"path to the CORS policy file"`
	Addr        string `short:"a" long:"addr" default:":8080" description:"listen address"`
	Server      string `long:"server" default:"http" choice:"http" choice:"fiber" description:"server implementation"`
	PrintPolicy bool   `long:"print-policy" description:"print the effective policy and exit"`
}

func parseOptions(args []string) (*options, error) {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return &opts, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Println(err)
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := newLogger()

	cfg, err := policyfile.Load(opts.Policy)
	if err != nil {
		logger.Fatalf("failed to load policy: %v", err)
	}
	mw, err := corsguard.NewMiddleware(cfg)
	if err != nil {
		logger.Fatalf("invalid policy: %v", err)
	}
	if opts.PrintPolicy {
		if err := printPolicy(os.Stdout, mw.Config()); err != nil {
			logger.Fatal(err)
		}
		return
	}
	mw.SetLogger(logger)
	mw.SetDebug(logger.IsLevelEnabled(logrus.DebugLevel))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	mw.SetObserver(corsmetrics.MustNew(reg))
	metrics := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go reloadOnHangup(ctx, logger, mw, opts.Policy)

	var srv server
	switch opts.Server {
	case "http":
		srv = newHTTPServer(opts.Addr, mw, metrics)
	case "fiber":
		srv = newFiberServer(opts.Addr, mw, metrics)
	default:
		logger.Fatalf("unknown server type %q", opts.Server)
	}

	errc := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    opts.Addr,
			"server":  opts.Server,
			"origins": len(cfg.Origins),
		}).Info("listening")
		errc <- srv.run()
	}()

	select {
	case err := <-errc:
		logger.Fatalf("server failed: %v", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.shutdown(shutdownCtx); err != nil {
		logger.Errorf("error shutting down server: %v", err)
		os.Exit(1)
	}
	logger.Info("server gracefully stopped")
}

// printPolicy writes cfg to w in the format of a policy file.
func printPolicy(w io.Writer, cfg *corsguard.Config) error {
	b, err := policyfile.Encode(cfg)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("failed to print policy: %w", err)
	}
	return nil
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "time",
			logrus.FieldKeyMsg:  "msg",
		},
	})
	logger.SetLevel(logrus.InfoLevel)
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		level, err := logrus.ParseLevel(lvl)
		if err != nil {
			logger.Warnf("ignoring invalid LOG_LEVEL %q", lvl)
		} else {
			logger.SetLevel(level)
		}
	}
	return logger
}

// reloadOnHangup reconfigures mw from the policy file whenever the process
// receives SIGHUP. An invalid policy leaves mw unchanged.
func reloadOnHangup(ctx context.Context, logger logrus.FieldLogger, mw *corsguard.Middleware, path string) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}
		cfg, err := policyfile.Load(path)
		if err == nil {
			err = mw.Reconfigure(&cfg)
		}
		if err != nil {
			logger.WithError(err).Error("policy reload failed; keeping the current policy")
			continue
		}
		logger.WithField("origins", len(cfg.Origins)).Info("policy reloaded")
	}
}

func resource() map[string]string {
	return map[string]string{"message": "CORS is enabled for this resource"}
}

type server interface {
	run() error
	shutdown(ctx context.Context) error
}

type httpServer struct {
	srv *http.Server
}

func newHTTPServer(addr string, mw *corsguard.Middleware, metrics http.Handler) *httpServer {
	api := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resource())
	})
	mux := http.NewServeMux()
	mux.Handle("GET "+resourcePath, mw.Wrap(api))
	// preflight requests must reach the middleware
	mux.Handle("OPTIONS "+resourcePath, mw.Wrap(http.NotFoundHandler()))
	mux.Handle("GET "+metricsPath, metrics)
	return &httpServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *httpServer) run() error {
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *httpServer) shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type fiberServer struct {
	app  *fiber.App
	addr string
}

func newFiberServer(addr string, mw *corsguard.Middleware, metrics http.Handler) *fiberServer {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get(metricsPath, adaptor.HTTPHandler(metrics))
	api := app.Group(resourcePath, corsfiber.New(mw))
	api.Get("", func(c *fiber.Ctx) error {
		return c.JSON(resource())
	})
	return &fiberServer{app: app, addr: addr}
}

func (s *fiberServer) run() error {
	return s.app.Listen(s.addr)
}

func (s *fiberServer) shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
