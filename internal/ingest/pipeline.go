package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"summitsafeguard/go-tracker-server/internal/model"
	"summitsafeguard/go-tracker-server/internal/store"
)

const (
	topicFilter = "tracking/+/data"

	// reconnectInterval is the fixed delay between broker connection
	// attempts. It never grows and there is no attempt limit.
	reconnectInterval = 5 * time.Second

	storeTimeout = 2 * time.Second
)

// Pipeline subscribes to hiker telemetry topics and writes validated
// readings to the store. It owns its MQTT client; message handlers are
// methods over that state, not package-level callbacks.
type Pipeline struct {
	broker        string
	strictHikerID bool
	logger        *slog.Logger
	store         *store.Store
	client        mqtt.Client
}

// New constructs a pipeline targeting the given broker address.
func New(broker string, strictHikerID bool, logger *slog.Logger, st *store.Store) *Pipeline {
	return &Pipeline{
		broker:        broker,
		strictHikerID: strictHikerID,
		logger:        logger,
		store:         st,
	}
}

// Run connects to the broker and processes messages until the context is
// cancelled. Connection failures are retried forever at a fixed interval;
// per-message failures are logged and never stop the subscriber.
func (p *Pipeline) Run(ctx context.Context) error {
	clientID := fmt.Sprintf("tracker-subscriber-%s", uuid.NewString())

	opts := mqtt.NewClientOptions().
		AddBroker(p.broker).
		SetClientID(clientID).
		SetOrderMatters(false).
		SetConnectRetry(true).
		SetConnectRetryInterval(reconnectInterval).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(reconnectInterval)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.logger.Warn("broker connection lost, reconnecting", "error", err)
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		p.logger.Info("connected to broker", "broker", p.broker, "client_id", clientID)
		token := client.Subscribe(topicFilter, 0, p.handleMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			p.logger.Error("subscribe failed", "topic", topicFilter, "error", err)
			return
		}
		p.logger.Info("subscribed", "topic", topicFilter)
	})

	p.client = mqtt.NewClient(opts)

	token := p.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("connect to broker: %w", err)
		}
	case <-ctx.Done():
		p.client.Disconnect(250)
		return ctx.Err()
	}

	<-ctx.Done()
	p.client.Disconnect(250)
	p.logger.Info("subscriber stopped")
	return nil
}

// handleMessage converts one inbound message into at most one telemetry
// row. Every failure path discards the message and keeps the subscriber
// alive: malformed topics and payloads are rejected before the store is
// touched, and store failures are caught here.
func (p *Pipeline) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	ctx := context.Background()

	hikerID, err := parseTopic(msg.Topic(), p.strictHikerID)
	if err != nil {
		p.logger.Warn("discarding message with malformed topic", "topic", msg.Topic(), "error", err)
		p.recordIngestionError(ctx, msg.Topic(), msg.Payload(), err)
		return
	}

	reading, err := decodePayload(msg.Payload())
	if err != nil {
		p.logger.Warn("discarding malformed payload", "topic", msg.Topic(), "hiker", hikerID, "error", err)
		p.recordIngestionError(ctx, msg.Topic(), msg.Payload(), err)
		return
	}

	record := model.TelemetryRecord{
		HikerID:     hikerID,
		Latitude:    *reading.Latitude,
		Longitude:   *reading.Longitude,
		Temperature: reading.temperature(),
		Humidity:    reading.humidity(),
		SOSActive:   reading.sosActive(),
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := p.store.InsertTelemetry(storeCtx, record); err != nil {
		p.logger.Error("failed to persist telemetry", "hiker", hikerID, "error", err)
		p.recordIngestionError(ctx, msg.Topic(), msg.Payload(), err)
		return
	}

	p.logger.Info("ingested telemetry", "hiker", hikerID, "sos", record.SOSActive)
}

func (p *Pipeline) recordIngestionError(ctx context.Context, topic string, payload []byte, cause error) {
	if p.store == nil {
		return
	}

	recCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	entry := model.IngestionError{
		Topic:   topic,
		Payload: truncateString(string(payload), 4096),
		Error:   cause.Error(),
	}

	if err := p.store.InsertIngestionError(recCtx, entry); err != nil {
		p.logger.Error("failed to persist ingestion error", "error", err)
	}
}

func truncateString(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
