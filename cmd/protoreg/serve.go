package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/glimte/protoreg"
	"github.com/glimte/protoreg/health"
	"github.com/glimte/protoreg/internal/config"
	"github.com/glimte/protoreg/internal/httpapi"
	"github.com/glimte/protoreg/internal/rabbitmq"
	"github.com/glimte/protoreg/internal/reliability"
	transport "github.com/glimte/protoreg/transports/rabbitmq"
)

const healthTimeout = 5 * time.Second

// connectPolicy spaces the initial broker connection attempts
var connectPolicy reliability.RetryPolicy = reliability.NewExponentialBackoff(500*time.Millisecond, 10*time.Second, 2.0, 5)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the registry over HTTP and, optionally, RabbitMQ",
		Long: `Load the schema directory and serve validation requests over HTTP.
When amqp.url is set, requests are also consumed from the configured queue
and answered on their ReplyTo queue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg, err := a.loadRegistry(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return a.serve(ctx, reg)
		},
	}

	cmd.Flags().String("addr", "", "HTTP listen address")
	cmd.Flags().String("amqp-url", "", "RabbitMQ URL enabling the validation queue")
	_ = a.v.BindPFlag("http.addr", cmd.Flags().Lookup("addr"))
	_ = a.v.BindPFlag("amqp.url", cmd.Flags().Lookup("amqp-url"))

	return cmd
}

func (a *app) serve(ctx context.Context, reg *protoreg.Registry) error {
	aggregator := health.NewAggregator()
	aggregator.Register(health.NewRegistryChecker(reg))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	amqpDone := make(chan error, 1)
	if a.cfg.AMQP.Enabled() {
		conn, err := a.startValidationService(ctx, reg, a.cfg.AMQP, amqpDone)
		if err != nil {
			return err
		}
		defer conn.Close()
		broker := health.NewRabbitMQChecker(conn)
		conn.AddStateListener(broker)
		aggregator.Register(broker)
	}

	router := httpapi.NewRouter(reg, health.NewHandler(aggregator, healthTimeout), a.logger)
	server := httpapi.NewServer(a.cfg.HTTP.Addr, router,
		httpapi.WithReadTimeout(a.cfg.HTTP.ReadTimeout),
		httpapi.WithServerLogger(a.logger),
	)

	err := server.Run(ctx)
	cancel()
	if a.cfg.AMQP.Enabled() {
		if amqpErr := <-amqpDone; err == nil {
			err = amqpErr
		}
	}
	return err
}

func (a *app) startValidationService(ctx context.Context, reg *protoreg.Registry, cfg config.AMQPConfig, done chan<- error) (*rabbitmq.ConnectionManager, error) {
	conn := rabbitmq.NewConnectionManager(cfg.URL, rabbitmq.WithLogger(a.logger))
	err := reliability.Retry(ctx, connectPolicy, func() error {
		err := conn.Connect(ctx)
		if err != nil && !rabbitmq.IsRetryable(err) {
			return reliability.Permanent(err)
		}
		if err != nil {
			a.logger.Warn("rabbitmq not reachable", "url", rabbitmq.SanitizeURL(cfg.URL), "error", err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	service := transport.NewValidationService(reg, conn,
		transport.WithQueue(cfg.Queue),
		transport.WithPrefetch(cfg.Prefetch),
		transport.WithLogger(a.logger),
	)
	go func() {
		done <- service.Run(ctx)
	}()

	a.logger.Info("validation queue enabled",
		"queue", service.Queue(),
		"url", rabbitmq.SanitizeURL(cfg.URL))
	return conn, nil
}
