package frames

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire form of a frame on the internal stream transport.
// The kind tag selects the concrete frame type on decode.
type Envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Wrap encodes a frame into its wire envelope.
func Wrap(f Frame) (Envelope, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s frame: %w", f.FrameKind(), err)
	}
	return Envelope{Kind: f.FrameKind(), Data: data}, nil
}

// Decode unpacks the envelope into its concrete frame type.
func (e Envelope) Decode() (Frame, error) {
	switch e.Kind {
	case KindServers:
		var f ServerFrame
		if err := json.Unmarshal(e.Data, &f); err != nil {
			return nil, fmt.Errorf("failed to decode server frame: %w", err)
		}
		return f, nil
	case KindJourneys:
		var f JourneyFrame
		if err := json.Unmarshal(e.Data, &f); err != nil {
			return nil, fmt.Errorf("failed to decode journey frame: %w", err)
		}
		return f, nil
	case KindDispatchPosts:
		var f DispatchPostFrame
		if err := json.Unmarshal(e.Data, &f); err != nil {
			return nil, fmt.Errorf("failed to decode dispatch post frame: %w", err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown frame kind %q", e.Kind)
	}
}
