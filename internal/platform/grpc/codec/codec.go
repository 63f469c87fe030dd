// Package codec registers the JSON wire codec used by hexterrain services.
//
// Service messages are plain Go structs with json tags. Clients select the
// codec per call with CallOption; servers pick it from the request's
// content-subtype once this package is imported. Protobuf messages (the
// health service) are encoded with protojson so they remain usable under
// the same subtype.
package codec

import (
	"encoding/json"
	"fmt"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Name is the gRPC content-subtype for the JSON codec.
const Name = "json"

func init() {
	encoding.RegisterCodec(JSON{})
}

// JSON marshals gRPC messages as JSON documents.
type JSON struct{}

// Name implements encoding.Codec.
func (JSON) Name() string {
	return Name
}

// Marshal implements encoding.Codec.
func (JSON) Marshal(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return protojson.Marshal(msg)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return data, nil
}

// Unmarshal implements encoding.Codec.
func (JSON) Unmarshal(data []byte, v any) error {
	if msg, ok := v.(proto.Message); ok {
		return protojson.Unmarshal(data, msg)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

// CallOption selects the JSON codec for a single call.
func CallOption() gogrpc.CallOption {
	return gogrpc.CallContentSubtype(Name)
}
