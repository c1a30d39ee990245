package publisher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-json-experiment/json"
	"github.com/google/uuid"

	"github.com/jgoulah/dayboard/internal/config"
	"github.com/jgoulah/dayboard/pkg/models"
)

// Publisher pushes stored snapshots to an MQTT broker and/or Home Assistant
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	haConfig    config.HAConfig
	http        *http.Client
}

// New creates a new publisher. At least one of MQTT or Home Assistant must be enabled.
func New(mqttCfg config.MQTTConfig, haCfg config.HAConfig) (*Publisher, error) {
	if !mqttCfg.Enabled && !haCfg.Enabled {
		return nil, fmt.Errorf("neither MQTT nor Home Assistant publishing is enabled in config")
	}

	if haCfg.Enabled {
		if haCfg.URL == "" {
			return nil, fmt.Errorf("Home Assistant URL is required when enabled")
		}
		if haCfg.Token == "" {
			return nil, fmt.Errorf("Home Assistant token is required when enabled")
		}
		if haCfg.EntityPrefix == "" {
			haCfg.EntityPrefix = "sensor.dayboard"
		}
	}

	var client mqtt.Client
	var topicPrefix string

	if mqttCfg.Enabled {
		if mqttCfg.Broker == "" {
			return nil, fmt.Errorf("MQTT broker address is required when enabled")
		}

		topicPrefix = mqttCfg.TopicPrefix
		if topicPrefix == "" {
			topicPrefix = "dayboard"
		}

		opts := mqtt.NewClientOptions()
		opts.AddBroker(fmt.Sprintf("tcp://%s", mqttCfg.Broker))
		opts.SetClientID("dayboard-" + uuid.NewString()[:8])
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)
		opts.SetConnectTimeout(10 * time.Second)

		if mqttCfg.Username != "" {
			opts.SetUsername(mqttCfg.Username)
		}
		if mqttCfg.Password != "" {
			opts.SetPassword(mqttCfg.Password)
		}

		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
		}
	}

	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
		haConfig:    haCfg,
		http:        &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Topic returns the retained MQTT topic for a snapshot, e.g. dayboard/market/2024-01-02/VOO
func (p *Publisher) Topic(s models.Snapshot) string {
	return fmt.Sprintf("%s/%s/%s", p.topicPrefix, s.Source(), s.Key())
}

// EntityID returns the Home Assistant entity a snapshot updates. Market rows get one
// entity per symbol; weather and biometric rows share one entity per source.
func (p *Publisher) EntityID(s models.Snapshot) string {
	id := fmt.Sprintf("%s_%s", p.haConfig.EntityPrefix, s.Source())
	if m, ok := s.(models.MarketSnapshot); ok {
		id += "_" + slug(m.Symbol)
	}
	return id
}

func slug(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, s)
}

// HAState is the body of a Home Assistant state update
type HAState struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// Publish sends one snapshot to every enabled target
func (p *Publisher) Publish(ctx context.Context, s models.Snapshot) error {
	payload, err := json.Marshal(s, json.Deterministic(true))
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	if p.client != nil {
		token := p.client.Publish(p.Topic(s), 1, true, payload)
		if !token.WaitTimeout(10*time.Second) {
			return fmt.Errorf("publishing %s: timed out", p.Topic(s))
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publishing %s: %w", p.Topic(s), err)
		}
	}

	if p.haConfig.Enabled {
		if err := p.postState(ctx, s, payload); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) postState(ctx context.Context, s models.Snapshot, payload []byte) error {
	attrs := map[string]any{}
	if err := json.Unmarshal(payload, &attrs); err != nil {
		return fmt.Errorf("decoding snapshot attributes: %w", err)
	}
	body, err := json.Marshal(HAState{State: s.State(), Attributes: attrs}, json.Deterministic(true))
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	apiURL := fmt.Sprintf("%s/api/states/%s", strings.TrimRight(p.haConfig.URL, "/"), p.EntityID(s))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.haConfig.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	// 200 updates an existing entity, 201 creates it
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
