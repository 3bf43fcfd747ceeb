package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/setarcos/birdroom/internal/config"
	"github.com/setarcos/birdroom/internal/db"
	"github.com/setarcos/birdroom/internal/httpapi"
	"github.com/setarcos/birdroom/internal/metrics"
	"github.com/setarcos/birdroom/internal/modules/readings"
	"github.com/setarcos/birdroom/internal/mqtt"
)

const (
	mqttConnectTimeout = 5 * time.Second
	shutdownTimeout    = 10 * time.Second
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"opsAddr", cfg.OpsAddr,
		"pathPrefix", cfg.PathPrefix,
		"apiKeySet", cfg.APIKey != "",
		"dbDriver", cfg.DBDriver,
		"sqlitePath", cfg.SQLitePath,
		"dbMaxOpenConns", cfg.DBMaxOpenConns,
		"dbMaxIdleConns", cfg.DBMaxIdleConns,
		"dbConnMaxLifetime", cfg.DBConnMaxLifetime,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
	)
	if cfg.APIKey == "" {
		slog.Warn("API_KEY is empty, every /op request will be rejected")
	}

	dbConn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if err := db.EnsureSchema(ctx, dbConn); err != nil {
		return err
	}

	var ok int
	if err := dbConn.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
		return err
	}
	if ok != 1 {
		return errors.New("database connection failed")
	}
	slog.Info("database connection successful")

	m := metrics.New()
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Prefix:  cfg.PathPrefix,
		APIKey:  cfg.APIKey,
		Metrics: m,
	})

	// The handler is attached before Connect so messages queued by the broker
	// right after CONNACK are not dropped.
	var subscriber *mqtt.Subscriber
	if cfg.MQTTEnabled() {
		subscriber, err = mqtt.NewSubscriber(cfg, slog.Default())
		if err != nil {
			return err
		}
		readings.RegisterFeature(ctx, router, dbConn, subscriber, m, slog.Default())
	} else {
		slog.Info("mqtt disabled, MQTT_BROKER not set")
		readings.RegisterFeature(ctx, router, dbConn, nil, m, slog.Default())
	}

	if subscriber != nil {
		connectCtx, connectCancel := context.WithTimeout(ctx, mqttConnectTimeout)
		err = subscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			slog.Warn("mqtt connection failed, retrying in background", "error", err)
			go func() {
				err := subscriber.Connect(ctx)
				if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, mqtt.ErrStopped) {
					slog.Error("mqtt connect", "error", err)
				}
			}()
		}
	}

	servers := []*http.Server{httpapi.NewServer(cfg.HTTPAddr, router, slog.Default())}
	if cfg.OpsAddr != "" {
		servers = append(servers, httpapi.NewServer(cfg.OpsAddr, httpapi.NewOpsMux(dbConn, m), slog.Default()))
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			slog.Info("http listening", "addr", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if subscriber != nil {
		slog.Info("mqtt disconnecting")
		subscriber.Disconnect()
	}

	slog.Info("http shutting down")
	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, err)
		}
	}
	if serveErr != nil || shutdownErr != nil {
		return errors.Join(serveErr, shutdownErr)
	}
	return ctx.Err()
}
