// Package nilvmpb declares the wire messages for the seven services
// spec.md §6 names (Payments, Permissions, Values, Compute, Preprocessing,
// LeaderQueries, Membership) and registers the codec grpc uses to marshal
// them.
//
// Production nilVM encodes these messages with protobuf, generated by
// protoc from a .proto file. No protoc toolchain is available here, so the
// messages below are hand-declared Go structs carrying the same fields
// under the same names, and grpc is told to marshal them with gob instead
// of protobuf by registering a codec under the name "gob" and dialing with
// grpc.CallContentSubtype("gob")/serving with the matching encoding name.
// This is a substitution in the wire format only — service names, method
// names, streaming shape and field names all match spec.md §6 exactly.
package nilvmpb

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const CodecName = "gob"

// gobCodec implements google.golang.org/grpc/encoding.Codec.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("nilvmpb: gob marshal: %w", err)
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("nilvmpb: gob unmarshal: %w", err)
	}
	return nil
}

func (gobCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(gobCodec{})
}
