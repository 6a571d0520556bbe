// Package mqtt provides MQTT client connectivity for the Roku service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) so the bridge health topic flips to
//     offline when the process dies
//
// The Roku bridge and the HTTP API share one client. The bridge owns
// graylogic/{command,request}/roku/# and publishes state, acks, responses,
// health and discovery; the API subscribes to graylogic/state/roku/+.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.WithWill(mqtt.Will{
//	    Topic:    health.GetLWTTopic(),
//	    Payload:  health.GetLWTPayload(),
//	    QoS:      1,
//	    Retained: true,
//	}))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("graylogic/state/roku/+", 1,
//	    func(topic string, payload []byte) error {
//	        return hub.Broadcast(topic, payload)
//	    })
//
// Credentials are never logged; use BrokerURL for log fields.
package mqtt
