package schema

import (
	"fmt"

	"github.com/bytedance/sonic"
	prettyjson "github.com/hokaccha/go-prettyjson"

	"github.com/kafka-investigator/kafka-investigator/internal/envelope"
	"github.com/kafka-investigator/kafka-investigator/pkg/errors"
)

// Decode 按schema解码带框架的payload，返回格式化的JSON
func Decode(s *Schema, payload []byte) ([]byte, error) {
	info := envelope.Detect(payload)
	if !info.IsFramed {
		return nil, errors.New(errors.ErrCodeSchemaDecode, "payload does not carry a schema id")
	}
	if *info.SchemaID != s.ID {
		return nil, errors.New(errors.ErrCodeSchemaDecode,
			fmt.Sprintf("payload schema id %d does not match schema %d", *info.SchemaID, s.ID))
	}
	body := envelope.Body(payload)

	switch s.Type {
	case TypeAvro:
		return decodeAvro(s, body)
	case TypeJSON:
		return decodeJSON(body)
	default:
		return nil, errors.New(errors.ErrCodeSchemaDecode,
			fmt.Sprintf("decoding %s payloads is not supported", s.Type))
	}
}

// decodeAvro Avro二进制转为JSON
func decodeAvro(s *Schema, body []byte) ([]byte, error) {
	codec, err := s.Codec()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSchemaDecode, "failed to compile avro schema", err)
	}

	native, rest, err := codec.NativeFromBinary(body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSchemaDecode, "failed to decode avro payload", err)
	}
	if len(rest) > 0 {
		return nil, errors.New(errors.ErrCodeSchemaDecode,
			fmt.Sprintf("avro payload has %d trailing bytes", len(rest)))
	}

	textual, err := codec.TextualFromNative(nil, native)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSchemaDecode, "failed to encode avro datum as json", err)
	}
	return FormatJSON(textual)
}

// decodeJSON JSON schema的payload本身就是JSON
func decodeJSON(body []byte) ([]byte, error) {
	var v interface{}
	if err := sonic.Unmarshal(body, &v); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSchemaDecode, "payload is not valid json", err)
	}
	return FormatJSON(body)
}

// FormatJSON 格式化JSON文本
func FormatJSON(data []byte) ([]byte, error) {
	out, err := prettyjson.Format(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSchemaDecode, "failed to format json", err)
	}
	return out, nil
}
