package protocol

import (
	"encoding/json"
	"strconv"
)

// FrameBatch is one remote-screen update, possibly spanning several
// rectangular regions.
type FrameBatch struct {
	ID      string        `json:"id"`
	Regions []FrameRegion `json:"regions"`
}

// FrameRegion is a single rectangle of image data within a batch.
type FrameRegion struct {
	Image  string  `json:"image"`
	IsFull bool    `json:"isFull"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// wireRegion decodes region fields permissively: geometry arrives as
// whatever the agent serialized and is coerced to numbers afterwards.
type wireRegion struct {
	Image  string `json:"image"`
	IsFull bool   `json:"isFull"`
	X      any    `json:"x"`
	Y      any    `json:"y"`
	Width  any    `json:"width"`
	Height any    `json:"height"`
}

type frameBatchPayload struct {
	ID      string       `json:"id"`
	Regions []wireRegion `json:"regions"`
}

func decodeFrameBatch(id string, payload json.RawMessage) (FrameBatch, error) {
	var wire frameBatchPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &wire); err != nil {
			return FrameBatch{}, err
		}
	}
	if wire.ID == "" {
		wire.ID = id
	}

	batch := FrameBatch{
		ID:      wire.ID,
		Regions: make([]FrameRegion, 0, len(wire.Regions)),
	}
	for _, region := range wire.Regions {
		batch.Regions = append(batch.Regions, FrameRegion{
			Image:  region.Image,
			IsFull: region.IsFull,
			X:      coerceNumber(region.X),
			Y:      coerceNumber(region.Y),
			Width:  coerceNumber(region.Width),
			Height: coerceNumber(region.Height),
		})
	}
	return batch, nil
}

// coerceNumber converts a loosely typed geometry field to a number, with 0
// for anything missing or unparseable.
func coerceNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return parsed
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
