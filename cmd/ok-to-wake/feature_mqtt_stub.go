//go:build no_mqtt

package main

import (
	"log/slog"

	"ok-to-wake/internal/device"
	"ok-to-wake/internal/events"
)

func newMQTTService(_ *device.Device, _ *events.Bus, cfg *Config, logger *slog.Logger) onlineService {
	if cfg.MQTT.Enabled {
		logger.Warn("mqtt enabled in config but this build has no mqtt support")
	}
	return nopService{}
}
