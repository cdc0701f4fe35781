package x32

// Session message type tags (engine → session).
const (
	MsgTypePing         = "ping"
	MsgTypeRouting      = "routing"
	MsgTypeChannelNames = "channel_names"
	MsgTypeClp          = "clp"
	MsgTypeMatrixUpdate = "matrix_update"
)

// PingMessage answers a session ping with the console address.
type PingMessage struct {
	Type string `json:"type"`
	From string `json:"from"`
}

// RoutingMessage carries the four routing-block values. Slots whose
// reply never arrived are null, so every result has the same shape.
type RoutingMessage struct {
	Type   string `json:"type"`
	Values []*int `json:"values"`
}

// ChannelNamesMessage carries the full channel name map, keyed by
// two-digit channel id.
type ChannelNamesMessage struct {
	Type  string            `json:"type"`
	Names map[string]string `json:"names"`
}

// ClpMessage relays a console parameter reply (attribute pushes and
// generic passthrough reads).
type ClpMessage struct {
	Type    string `json:"type"`
	Address string `json:"address"`
	Args    []any  `json:"args"`
}

// MatrixUpdateMessage announces a persisted channel matrix change.
type MatrixUpdateMessage struct {
	Type   string `json:"type"`
	Matrix any    `json:"matrix"`
}

// NewPingMessage builds a ping reply.
func NewPingMessage(from string) PingMessage {
	return PingMessage{Type: MsgTypePing, From: from}
}

// NewRoutingMessage builds a routing fan-out message.
func NewRoutingMessage(values []*int) RoutingMessage {
	return RoutingMessage{Type: MsgTypeRouting, Values: values}
}

// NewChannelNamesMessage builds a channel-name fan-out message.
func NewChannelNamesMessage(names map[string]string) ChannelNamesMessage {
	return ChannelNamesMessage{Type: MsgTypeChannelNames, Names: names}
}

// NewClpMessage builds a parameter relay message.
func NewClpMessage(address string, args []any) ClpMessage {
	return ClpMessage{Type: MsgTypeClp, Address: address, Args: args}
}

// NewMatrixUpdateMessage builds a matrix fan-out message.
func NewMatrixUpdateMessage(matrix any) MatrixUpdateMessage {
	return MatrixUpdateMessage{Type: MsgTypeMatrixUpdate, Matrix: matrix}
}
