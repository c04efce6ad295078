package apiserver

import "fmt"

// protowireCodec implements grpc's encoding.Codec interface directly against
// the hand-rolled wireMessage/wireMap pair in wire.go, in place of the
// generated-proto codec a `.proto`+protoc-gen-go pipeline would normally
// supply. Registered on the server via grpc.ForceServerCodec so every
// method on [ServiceDesc] is carried as real protobuf wire bytes without a
// codegen step — see SPEC_FULL.md §6.
type protowireCodec struct{}

func (protowireCodec) Name() string { return "agm-protowire" }

func (protowireCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("apiserver: codec: %T does not implement wireMessage", v)
	}
	return m.toWire().encode(), nil
}

func (protowireCodec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("apiserver: codec: %T does not implement wireMessage", v)
	}
	wm, err := decodeWire(data)
	if err != nil {
		return err
	}
	return m.fromWire(wm)
}
