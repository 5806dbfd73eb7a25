package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Config holds the MQTT broker connection settings shared by every service.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	ClientID string
}

// Addr returns the tcp:// connection address for the broker.
func (c *Config) Addr() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

// NewConn dials the MQTT broker with exponential backoff and ties the
// connection lifetime to ctx: when ctx is cancelled the client disconnects.
func NewConn(ctx context.Context, cfg *Config, log *zap.SugaredLogger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Addr())
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	const maxRetries = 5

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Warnf("broker connect failed: %v", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithMaxRetries(bo, uint64(maxRetries-1)))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	log.Infof("connected to MQTT broker at %s", cfg.Addr())

	go func() {
		<-ctx.Done()
		client.Disconnect(250)
		log.Info("MQTT connection closed")
	}()

	return client, nil
}

// CloseConn disconnects the client if it is still connected.
func CloseConn(client mqtt.Client, log *zap.SugaredLogger) {
	if client.IsConnected() {
		client.Disconnect(250)
		log.Info("MQTT connection closed")
	}
}
