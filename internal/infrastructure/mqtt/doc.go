// Package mqtt provides the MQTT client used to announce switcher activity
// and receive remote control commands.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions restored after reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Topic Layout
//
//	uplink/system/status                 retained service status (LWT)
//	uplink/{user}/state                  retained session snapshot
//	uplink/{user}/event/{type}           switch and offline-timeout events
//	uplink/{user}/command/switcher       {"enabled": bool} toggles
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllSwitcherCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        user, _ := mqtt.Topics{}.UserFromTopic(topic)
//	        return handle(user, payload)
//	    })
package mqtt
