package readings

import (
	"context"
	"log/slog"

	"github.com/setarcos/birdroom/internal/db"
	"github.com/setarcos/birdroom/internal/metrics"
	"github.com/setarcos/birdroom/internal/modules/readings/controller"
	"github.com/setarcos/birdroom/internal/modules/readings/repository"
	"github.com/setarcos/birdroom/internal/modules/readings/service"
	"github.com/setarcos/birdroom/internal/mqtt"
)

// RegisterFeature wires the readings routes onto mux. When subscriber is
// non-nil, MQTT messages are ingested through the same service as POST
// /op/add.
func RegisterFeature(ctx context.Context, mux controller.Mux, gw db.Gateway, subscriber mqtt.MQTTSubscriber, m *metrics.Metrics, logger *slog.Logger) {
	readingsRepository := repository.NewRepository(gw)
	readingsService := service.NewService(readingsRepository, m, logger)
	readingsController := controller.NewReadingsController(readingsRepository, readingsService)
	readingsController.RegisterRoutes(mux)

	if subscriber != nil {
		readingsService.RegisterMQTT(ctx, subscriber)
	}
}
