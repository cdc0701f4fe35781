package mqtt

import "encoding/json"

// Mirror publishes console state snapshots retained, so a new subscriber
// immediately sees the last known routing and channel names. Publish
// failures are logged and swallowed; the mirror must never block or fail
// the engine's fan-out path.
type Mirror struct {
	client *Client
	qos    byte
	logger Logger
}

// NewMirror wraps a connected client as a state mirror.
func NewMirror(client *Client, qos byte, logger Logger) *Mirror {
	return &Mirror{client: client, qos: qos, logger: logger}
}

// PublishRouting publishes the routing block values, null per slot where
// never observed.
func (m *Mirror) PublishRouting(values []*int) {
	m.publishJSON(TopicRouting, map[string]any{"values": values})
}

// PublishNames publishes the full channel name map.
func (m *Mirror) PublishNames(names map[string]string) {
	m.publishJSON(TopicChannelNames, map[string]any{"names": names})
}

func (m *Mirror) publishJSON(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error("marshalling mirror payload failed", "topic", topic, "error", err)
		return
	}
	if err := m.client.Publish(topic, data, m.qos, true); err != nil {
		m.logger.Warn("mirror publish failed", "topic", topic, "error", err)
	}
}
