package discovery

import "encoding/json"

// wireMessage is the JSON record broadcast on the discovery port, per
// spec §6. app is checked exactly; datagrams from other applications
// sharing the LAN broadcast domain are ignored.
type wireMessage struct {
	App         string `json:"app"`
	Type        string `json:"type"`
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Port        int    `json:"port"`
	PlayerCount int    `json:"playerCount"`
	Status      string `json:"status"`
}

const wireType = "DISCOVERY"

func encodeWireMessage(m wireMessage) ([]byte, error) {
	m.Type = wireType
	return json.Marshal(m)
}

func decodeWireMessage(data []byte) (wireMessage, error) {
	var m wireMessage
	err := json.Unmarshal(data, &m)
	return m, err
}
