package service

import (
	"context"
	"time"

	"github.com/setarcos/birdroom/internal/mqtt"
)

const mqttStoreTimeout = 5 * time.Second

// RegisterMQTT feeds every message received by subscriber through Add. The
// payload is the same JSON object the HTTP ingest path accepts.
func (s *Service) RegisterMQTT(ctx context.Context, subscriber mqtt.MQTTSubscriber) {
	subscriber.SetMessageHandler(func(topic string, payload []byte) error {
		s.logger.Debug("processing reading message", "topic", topic, "size", len(payload))

		storeCtx, cancel := context.WithTimeout(ctx, mqttStoreTimeout)
		defer cancel()
		return s.Add(storeCtx, SourceMQTT, payload)
	})
}
