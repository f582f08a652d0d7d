package schema

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/linkedin/goavro/v2"
)

// Type Schema类型，与注册中心的schemaType字段一致
type Type string

const (
	TypeAvro     Type = "AVRO"
	TypeJSON     Type = "JSON"
	TypeProtobuf Type = "PROTOBUF"
)

// Lookup 按id查询schema的能力
type Lookup interface {
	GetSchema(ctx context.Context, id int32) (*Schema, error)
}

// Reference 引用的其他subject中的schema
type Reference struct {
	Name    string
	Subject string
	Version int
}

// Schema 注册中心返回的schema
type Schema struct {
	ID         int32
	Type       Type
	Text       string
	References []Reference

	// Avro codec在首次解码时编译
	codecOnce sync.Once
	codec     *goavro.Codec
	codecErr  error
}

// NewSchema 创建Schema
func NewSchema(id int32, typ Type, text string, refs ...Reference) *Schema {
	if typ == "" {
		// 注册中心对Avro schema省略schemaType
		typ = TypeAvro
	}
	return &Schema{
		ID:         id,
		Type:       Type(strings.ToUpper(string(typ))),
		Text:       text,
		References: refs,
	}
}

// Codec 返回Avro codec，引用了其他schema的类型无法单独编译
func (s *Schema) Codec() (*goavro.Codec, error) {
	if s.Type != TypeAvro {
		return nil, fmt.Errorf("schema %d is %s, not avro", s.ID, s.Type)
	}
	s.codecOnce.Do(func() {
		s.codec, s.codecErr = goavro.NewCodec(s.Text)
		if s.codecErr != nil {
			s.codecErr = fmt.Errorf("invalid avro schema %d: %w", s.ID, s.codecErr)
		}
	})
	return s.codec, s.codecErr
}

// String 返回Schema的字符串表示
func (s *Schema) String() string {
	return fmt.Sprintf("Schema{id:%d, type:%s, references:%d}", s.ID, s.Type, len(s.References))
}
