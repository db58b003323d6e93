// Package api describes the tokenkeeper.v1.AuthService gRPC contract: the
// request/response messages, the service descriptor and a typed client.
//
// Messages travel as JSON through a codec registered under the "json"
// content-subtype, so no generated protobuf code is involved. Clients must
// select it per call (see NewAuthServiceClient).
package api

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype of the JSON codec.
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
