// Package mqtt provides the broker connection used by the thermostazv bus
// bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS validation and a bounded wait
//   - Subscriptions that are restored after every reconnect
//   - Availability: a retained "Offline" last will, "Online" on every
//     (re)connect and "Offline" on a graceful Close
//
// # Topics
//
// Every topic comes from configuration; Topics wraps the configured names
// and builds the settings topics (<prefix>/set/<field>).
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.Topics)
//	err = client.Subscribe(topics.Command(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("order %s", payload)
//	        return nil
//	    })
package mqtt
