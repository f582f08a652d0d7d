// Package envelope 识别Schema Registry编码格式的payload
package envelope

import "encoding/binary"

// MagicByte Schema Registry序列化器写入的首字节
const MagicByte byte = 0x00

// HeaderSize magic byte + 4字节schema id
const HeaderSize = 5

// Info 检测结果
type Info struct {
	IsFramed bool
	SchemaID *int32
}

// Detect 判断payload是否带有schema id前缀；仅用于提示，不返回错误
func Detect(payload []byte) Info {
	if len(payload) < HeaderSize || payload[0] != MagicByte {
		return Info{}
	}

	id := int32(binary.BigEndian.Uint32(payload[1:HeaderSize]))
	return Info{IsFramed: true, SchemaID: &id}
}

// Body 去掉前缀后的payload，未编码时原样返回
func Body(payload []byte) []byte {
	if !Detect(payload).IsFramed {
		return payload
	}
	return payload[HeaderSize:]
}
