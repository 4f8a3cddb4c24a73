package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/artifact"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/config"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/identity"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/logx"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/provider"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/reconcile"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/version"

	_ "github.com/Chapsvision-dev/repo-backup-provisioner/internal/provider/azure"
	_ "github.com/Chapsvision-dev/repo-backup-provisioner/internal/provider/s3"
)

// Test seams, overridden in unit tests. Keep signatures in sync with packages.
var (
	loadConfig   func() (config.Config, error)                                     = config.Load
	newProvider  func(name string, cfg any) (provider.Provider, error)             = provider.New
	newIAMClient func(context.Context, config.AWSConfig) (identity.IAMAPI, error) = iamClient
	startLambda  func(handler any)                                                 = lambda.Start
	serveHTTP    func(context.Context, string, *reconcile.Dispatcher) error        = serve
	stdin        io.Reader                                                         = os.Stdin
	exit         func(int)                                                         = os.Exit
)

func iamClient(ctx context.Context, c config.AWSConfig) (identity.IAMAPI, error) {
	return identity.NewIAMClient(ctx, c)
}

const usage = `
Usage:
  provisioner lambda
  provisioner invoke  <event.json | ->
  provisioner serve
  provisioner version | --version | -v
  provisioner help    | --help    | -h

Notes:
  - "lambda" is the default when AWS_LAMBDA_RUNTIME_API is set.
  - Requests without a ResourceType go to PROVISIONER_HANDLER
    (oidc-provider or workflow-artifact).
  - Artifacts are written through STORAGE_PROVIDER (default: s3).
  - "serve" listens on METRICS_ADDR (default :9090): POST /invoke, GET /metrics, GET /healthz.
`

// main wires CLI -> config -> clients -> dispatcher -> signaler.
// Exit codes: 0 success, 1 runtime error or FAILED result, 2 usage error.
func main() {
	_ = godotenv.Load() // best-effort
	logx.InitFromEnv()

	args := os.Args[1:]
	action := ""
	if len(args) > 0 {
		action = strings.ToLower(args[0])
	} else if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		action = "lambda"
	}
	if action == "" {
		fmt.Print(usage)
		exit(2)
	}

	// Handle version command
	if action == "version" || action == "--version" || action == "-v" {
		fmt.Printf("%s %s\n", version.Product, version.Info())
		exit(0)
	}

	// Handle help command
	if action == "help" || action == "--help" || action == "-h" {
		fmt.Print(usage)
		exit(0)
	}

	if action != "lambda" && action != "invoke" && action != "serve" {
		fmt.Print(usage)
		exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("config error")
		exit(1)
	}

	ctx := withSignals(context.Background())

	d, err := buildDispatcher(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("init error")
		exit(1)
	}

	switch action {
	case "lambda":
		log.Info().
			Str("action", "start").
			Str("mode", "lambda").
			Strs("resource_types", d.ResourceTypes()).
			Str("version", version.Version).
			Msg("provisioner starting")
		startLambda(lambdaHandler(d, cfg))

	case "invoke":
		if len(args) < 2 {
			fmt.Print(usage)
			exit(2)
		}
		res, err := invoke(ctx, d, args[1])
		if err != nil {
			log.Error().Err(err).Str("action", "invoke").Msg("invoke failed")
			exit(1)
		}
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(out))
		if res.Status != reconcile.Success {
			exit(1)
		}

	case "serve":
		if err := serveHTTP(ctx, cfg.MetricsAddr, d); err != nil {
			log.Error().Err(err).Str("action", "serve").Msg("server failed")
			exit(1)
		}
	}
}

// buildDispatcher constructs the process-wide clients once and registers
// both handlers.
func buildDispatcher(ctx context.Context, cfg config.Config) (*reconcile.Dispatcher, error) {
	iamc, err := newIAMClient(ctx, cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("iam client: %w", err)
	}
	store, err := newProvider(cfg.Provider, cfg)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", cfg.Provider, err)
	}

	d := reconcile.NewDispatcher(
		reconcile.WithDefaultResourceType(cfg.Handler),
		reconcile.WithSignalReserve(cfg.SignalReserve),
	)
	d.Register(identity.NewReconciler(iamc), identity.ResourceTypes...)
	d.Register(artifact.NewMaterializer(store), artifact.ResourceTypes...)
	return d, nil
}

// lambdaHandler delivers results to the orchestrator's callback address when
// the event carries one and returns them directly otherwise. A delivery
// failure is returned so the runtime marks the invocation failed.
func lambdaHandler(d *reconcile.Dispatcher, cfg config.Config) func(context.Context, reconcile.Request) (reconcile.Result, error) {
	callback := reconcile.NewCallbackSignaler(
		reconcile.WithAttemptTimeout(cfg.CallbackTimeout),
		reconcile.WithRetry(cfg.RetryOptions()),
	)
	return func(ctx context.Context, req reconcile.Request) (reconcile.Result, error) {
		var sig reconcile.Signaler = reconcile.DirectSignaler{}
		if req.ResponseURL != "" {
			sig = callback
		}
		return d.Handle(ctx, req, sig)
	}
}

// invoke runs one request read from path ("-" for stdin).
func invoke(ctx context.Context, d *reconcile.Dispatcher, path string) (reconcile.Result, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("read event: %w", err)
	}
	req, err := reconcile.ParseRequest(raw)
	if err != nil {
		return reconcile.Result{}, err
	}
	return d.Handle(ctx, req, reconcile.DirectSignaler{})
}

func withSignals(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		cancel()
	}()
	return ctx
}
