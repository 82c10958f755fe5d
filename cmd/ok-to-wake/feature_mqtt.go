//go:build !no_mqtt

package main

import (
	"log/slog"

	"ok-to-wake/internal/device"
	"ok-to-wake/internal/events"
	mqttbridge "ok-to-wake/internal/mqtt"
)

type mqttService struct {
	dev    *device.Device
	bus    *events.Bus
	cfg    mqttbridge.Config
	logger *slog.Logger
	bridge *mqttbridge.Bridge
}

func newMQTTService(dev *device.Device, bus *events.Bus, cfg *Config, logger *slog.Logger) onlineService {
	if !cfg.MQTT.Enabled {
		return nopService{}
	}
	return &mqttService{
		dev: dev,
		bus: bus,
		cfg: mqttbridge.Config{
			Broker:       cfg.MQTT.Broker,
			Username:     cfg.MQTT.Username,
			Password:     cfg.MQTT.Password,
			TopicPrefix:  cfg.MQTT.TopicPrefix,
			PingInterval: cfg.MQTT.PingInterval,
		},
		logger: logger,
	}
}

func (m *mqttService) start() {
	bridge, err := mqttbridge.NewBridge(m.dev, m.bus, m.cfg, m.logger)
	if err != nil {
		m.logger.Error("mqtt bridge", "err", err)
		return
	}
	bridge.Start()
	m.bridge = bridge
}

func (m *mqttService) stop() {
	if m.bridge != nil {
		m.bridge.Stop()
		m.bridge = nil
	}
}
