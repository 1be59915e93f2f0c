package dispatch

import (
	"github.com/goccy/go-json"

	"github.com/viant/mcpsession"
)

// probe is unmarshaled just far enough to classify an inbound payload
// without committing to either the Request or Notification shape - the
// field that distinguishes them, "id", is present on one and absent on the
// other.
type probe struct {
	Id jsonrpc.RequestId `json:"id"`
}

// MessageType classifies a raw inbound JSON-RPC payload as a request or a
// notification. This server never receives a JSON-RPC response or a
// standalone error envelope - those shapes belong to the out-of-scope
// client library - so those two teacher-side variants have no counterpart
// here.
func MessageType(data []byte) jsonrpc.MessageType {
	p := probe{}
	_ = json.Unmarshal(data, &p)
	if p.Id == nil {
		return jsonrpc.MessageTypeNotification
	}
	return jsonrpc.MessageTypeRequest
}
