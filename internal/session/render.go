package session

import (
	"context"
	"fmt"
	"time"

	"github.com/kafka-investigator/kafka-investigator/internal/envelope"
	"github.com/kafka-investigator/kafka-investigator/pkg/utils"
)

const moreIndicator = " [more...]"

// payloadSide 消息的key或value
type payloadSide struct {
	name    string
	payload []byte
	info    envelope.Info
}

func (s *Session) sides() []payloadSide {
	return []payloadSide{
		{name: "Key", payload: s.current.Key, info: envelope.Detect(s.current.Key)},
		{name: "Value", payload: s.current.Value, info: envelope.Detect(s.current.Value)},
	}
}

// printRecord 输出消息概要与key/value预览
func (s *Session) printRecord(ctx context.Context) {
	r := s.current
	s.console.Title("Message")
	s.console.Table(
		[]string{"Partition", "Offset", "Timestamp", "Headers"},
		[][]string{{
			utils.ToString(r.Partition),
			utils.ToString(r.Offset),
			r.Timestamp.Format(time.RFC3339Nano),
			utils.ToString(len(r.Headers)),
		}},
	)

	for _, side := range s.sides() {
		s.console.Println(fmt.Sprintf("%s:%s %s", side.name, annotation(side.info), s.preview(side.payload)))

		if s.lookup == nil || !side.info.IsFramed {
			continue
		}
		// schema预览失败不影响消息展示
		sch, err := s.lookup.GetSchema(ctx, *side.info.SchemaID)
		if err != nil {
			s.console.Warn("%s schema [%d] not available: %v", side.name, *side.info.SchemaID, err)
			continue
		}
		s.console.Println(fmt.Sprintf("%s schema: %s", side.name,
			utils.Limit(utils.SingleLine(sch.Text), s.opts.SchemaPreviewLength, moreIndicator)))
	}
}

func annotation(info envelope.Info) string {
	if !info.IsFramed {
		return ""
	}
	return fmt.Sprintf(" [schema id: %d]", *info.SchemaID)
}

func (s *Session) preview(payload []byte) string {
	return utils.Limit(utils.SingleLine(utils.RawText(payload)), s.opts.PreviewLength, moreIndicator)
}

// printPayload 输出完整的key或value，JSON会被格式化
func (s *Session) printPayload(name string, payload []byte) {
	info := envelope.Detect(payload)
	s.console.Title(name + annotation(info))
	if payload == nil {
		s.console.Println(utils.RawText(nil))
		return
	}
	s.console.JSON([]byte(utils.RawText(envelope.Body(payload))))
}

func (s *Session) printHeaders(_ context.Context) error {
	s.console.Title("Headers")
	if len(s.current.Headers) == 0 {
		s.console.Println("[none]")
		return nil
	}

	rows := make([][]string, len(s.current.Headers))
	for i, h := range s.current.Headers {
		rows[i] = []string{h.Key, utils.Limit(utils.SingleLine(utils.RawText(h.Value)), s.opts.PreviewLength, moreIndicator)}
	}
	s.console.Table([]string{"Key", "Value"}, rows)
	return nil
}
