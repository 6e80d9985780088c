package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/LeventeLantos/sms-questionnaire/internal/api"
	"github.com/LeventeLantos/sms-questionnaire/internal/cache"
	"github.com/LeventeLantos/sms-questionnaire/internal/catalog"
	"github.com/LeventeLantos/sms-questionnaire/internal/client"
	"github.com/LeventeLantos/sms-questionnaire/internal/config"
	"github.com/LeventeLantos/sms-questionnaire/internal/events"
	"github.com/LeventeLantos/sms-questionnaire/internal/gateway"
	"github.com/LeventeLantos/sms-questionnaire/internal/repo"
	"github.com/LeventeLantos/sms-questionnaire/internal/scheduler"
	"github.com/LeventeLantos/sms-questionnaire/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	migrateOnly := pflag.Bool("migrate-only", false, "apply the schema, import the question catalog and exit")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.LoadAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *migrateOnly); err != nil {
		slog.Error("sms-questionnaire stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, migrateOnly bool) error {
	store, err := repo.Open(ctx, repo.Dialect(cfg.Database.Driver), cfg.Database.URL)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	if err := importCatalog(ctx, store, cfg.Catalog.QuestionsFile); err != nil {
		return err
	}
	if migrateOnly {
		slog.Info("schema migrated", "driver", cfg.Database.Driver)
		return nil
	}

	opts := []service.Option{}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, greeting cache degraded", "addr", cfg.Redis.Address, "err", err)
		}
		opts = append(opts, service.WithRecipientCache(cache.NewRedisCache(rdb, cfg.Redis.TTL)))
	}

	if cfg.AMQP.Enabled {
		pub, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		defer pub.Close()
		opts = append(opts, service.WithPublisher(pub))
	}

	twilio := client.NewTwilioClient(
		cfg.Twilio.AccountSID,
		cfg.Twilio.AuthToken,
		cfg.Twilio.FromNumber,
		client.WithBaseURL(cfg.Twilio.APIURL),
		client.WithStatusCallback(cfg.Twilio.StatusCallbackURL),
		client.WithTimeout(cfg.SMS.SendTimeout),
	)
	sender := gateway.NewSender(twilio, cfg.SMS.ContentMax, cfg.SMS.SendTimeout, cfg.Twilio.FromNumber, cfg.Twilio.AccountSID)
	quiz := service.NewQuestionnaire(store, sender, opts...)

	job := service.NewDispatchJob(quiz, cfg.Scheduler.Recipients)
	sched, err := scheduler.New("questionnaire-dispatch", cfg.Scheduler.Interval, func(ctx context.Context) {
		job.Run(ctx)
	})
	if err != nil {
		return err
	}
	defer sched.Stop()
	if cfg.Scheduler.AutoStart {
		sched.Start()
	}

	var verifier *api.SignatureVerifier
	if cfg.Twilio.VerifySignature {
		verifier = api.NewSignatureVerifier(cfg.Twilio.AuthToken, cfg.Twilio.PublicURL)
	} else {
		slog.Warn("webhook signature verification disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(api.Router(api.NewHandler(sched, store, quiz), verifier)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("sms-questionnaire starting",
		"addr", cfg.Server.Address,
		"driver", cfg.Database.Driver,
		"interval", cfg.Scheduler.Interval,
		"recipients", len(cfg.Scheduler.Recipients),
		"redis", cfg.Redis.Enabled,
		"amqp", cfg.AMQP.Enabled,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func importCatalog(ctx context.Context, store *repo.SQLStore, path string) error {
	if path == "" {
		return nil
	}
	qs, err := catalog.LoadFile(path)
	if err != nil {
		return err
	}
	n, err := catalog.Import(ctx, store.Questions(), qs)
	if err != nil {
		return err
	}
	slog.Info("question catalog imported", "file", path, "questions", len(qs), "new", n)
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
