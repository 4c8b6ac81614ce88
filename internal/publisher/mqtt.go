package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/jgoulah/dropcountr/internal/config"
	"github.com/jgoulah/dropcountr/pkg/models"
)

const publishTimeout = 10 * time.Second

// Publisher sends usage records to an MQTT broker
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	send        func(topic string, retained bool, payload []byte) error
}

// New connects to the configured MQTT broker
func New(mqttCfg config.MQTTConfig) (*Publisher, error) {
	if !mqttCfg.Enabled {
		return nil, fmt.Errorf("MQTT publishing is not enabled in config")
	}
	if mqttCfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	// Configure MQTT client options
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", mqttCfg.Broker))
	opts.SetClientID("dropcountr-" + uuid.NewString())
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)

	if mqttCfg.Username != "" {
		opts.SetUsername(mqttCfg.Username)
	}
	if mqttCfg.Password != "" {
		opts.SetPassword(mqttCfg.Password)
	}

	// Create and connect client
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	p := &Publisher{
		client:      client,
		topicPrefix: mqttCfg.GetTopicPrefix(),
	}
	p.send = p.mqttSend
	return p, nil
}

func (p *Publisher) mqttSend(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// UsagePayload is the JSON body of a usage message
type UsagePayload struct {
	ServiceConnectionID int     `json:"service_connection_id"`
	Period              string  `json:"period"`
	Start               string  `json:"start"`
	End                 string  `json:"end"`
	TotalGallons        float64 `json:"total_gallons"`
	IrrigationGallons   float64 `json:"irrigation_gallons"`
	IrrigationEvents    float64 `json:"irrigation_events"`
	IsLeaking           bool    `json:"is_leaking"`
}

// DiscoveryPayload registers the usage sensor with Home Assistant
type DiscoveryPayload struct {
	Name              string `json:"name"`
	UniqueID          string `json:"unique_id"`
	StateTopic        string `json:"state_topic"`
	ValueTemplate     string `json:"value_template"`
	UnitOfMeasurement string `json:"unit_of_measurement"`
	DeviceClass       string `json:"device_class"`
	StateClass        string `json:"state_class"`
	JSONAttributes    string `json:"json_attributes_topic"`
}

// UsageTopic returns the state topic for a service connection
func (p *Publisher) UsageTopic(serviceConnectionID int) string {
	return fmt.Sprintf("%s/%d/usage", p.topicPrefix, serviceConnectionID)
}

// Announce publishes a retained Home Assistant discovery message
func (p *Publisher) Announce(sc models.ServiceConnection) error {
	name := sc.Name
	if name == "" {
		name = fmt.Sprintf("Service %d", sc.ID)
	}
	payload := DiscoveryPayload{
		Name:              "DropCountr " + name,
		UniqueID:          fmt.Sprintf("dropcountr_%d_water", sc.ID),
		StateTopic:        p.UsageTopic(sc.ID),
		ValueTemplate:     "{{ value_json.total_gallons }}",
		UnitOfMeasurement: "gal",
		DeviceClass:       "water",
		StateClass:        "measurement",
		JSONAttributes:    p.UsageTopic(sc.ID),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding discovery payload: %w", err)
	}
	topic := fmt.Sprintf("homeassistant/sensor/dropcountr_%d/config", sc.ID)
	return p.send(topic, true, body)
}

// Publish sends one stored usage record
func (p *Publisher) Publish(rec models.UsageRecord) error {
	payload := UsagePayload{
		ServiceConnectionID: rec.ServiceConnectionID,
		Period:              string(rec.Period),
		Start:               rec.Start.Format(time.RFC3339),
		End:                 rec.End.Format(time.RFC3339),
		TotalGallons:        rec.TotalGallons,
		IrrigationGallons:   rec.IrrigationGallons,
		IrrigationEvents:    rec.IrrigationEvents,
		IsLeaking:           rec.IsLeaking,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	return p.send(p.UsageTopic(rec.ServiceConnectionID), false, body)
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
