package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultKeepAlive      = 60 * time.Second

	// Reconnect backoff bounds used when the config leaves them unset.
	defaultRetryInterval     = 1 * time.Second
	defaultMaxRetryInterval  = 60 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds

	maxQoS        = 2
	tlsMinVersion = tls.VersionTLS12
)

// BrokerURL returns the broker URL for cfg (tcp:// or ssl://).
// It never contains credentials and is safe to log.
func BrokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}

// buildClientOptions maps the service config onto paho options.
//
// Sessions are clean because state and health are retained on the broker.
// Messages are delivered unordered: a Roku command handler may block on
// device I/O for several seconds and must not hold up other topics.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(BrokerURL(cfg)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetOrderMatters(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(secondsOr(cfg.Reconnect.InitialDelay, defaultRetryInterval)).
		SetMaxReconnectInterval(secondsOr(cfg.Reconnect.MaxDelay, defaultMaxRetryInterval)).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
			ServerName: cfg.Broker.Host,
		})
	}

	return opts
}

// secondsOr converts a config value in seconds, falling back to def when
// the value is not positive.
func secondsOr(seconds int, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}
