package api

import "encoding/json"

// Codec is the Connect codec for the messages in this package. It replaces
// Connect's built-in "json" codec, which only accepts protobuf messages.
type Codec struct{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
