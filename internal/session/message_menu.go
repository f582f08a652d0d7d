package session

import (
	"context"
	"fmt"

	"github.com/kafka-investigator/kafka-investigator/internal/metrics"
	"github.com/kafka-investigator/kafka-investigator/internal/schema"
	"go.uber.org/zap"
)

// messageMenu 对当前消息的操作
func (s *Session) messageMenu(ctx context.Context) Signal {
	if s.current == nil {
		return SignalConsumerMenu
	}

	for {
		title := fmt.Sprintf("Message menu [%s] partition %d offset %d", s.req.Topic, s.current.Partition, s.current.Offset)
		s.console.Menu(title, messageOptions(s.state, s.lookup != nil))

		key, input, ok := s.readKey(ctx)
		if !ok {
			return SignalStopConsume
		}
		action, ok := parseMessageAction(key, s.state, s.lookup != nil)
		if !ok {
			s.invalidKey(input)
			continue
		}

		var stop bool
		switch action {
		case MessageNext:
			s.state.Menu = ConsumerMenu
			return SignalContinueConsume
		case MessageBackToConsumer:
			return SignalConsumerMenu
		case MessageQuit:
			return SignalStopConsume
		case MessagePrintKey:
			stop = s.perform(ctx, MessageMenu, action.String(), s.printKey)
		case MessagePrintValue:
			stop = s.perform(ctx, MessageMenu, action.String(), s.printValue)
		case MessagePrintHeaders:
			stop = s.perform(ctx, MessageMenu, action.String(), s.printHeaders)
		case MessageReprintPreview:
			stop = s.perform(ctx, MessageMenu, action.String(), s.reprint)
		case MessagePrintSchemas:
			stop = s.perform(ctx, MessageMenu, action.String(), s.printSchemas)
		case MessagePrintDecoded:
			stop = s.perform(ctx, MessageMenu, action.String(), s.printDecoded)
		case MessageCommit:
			stop = s.perform(ctx, MessageMenu, action.String(), s.commitMessage)
		case MessageExport:
			stop = s.perform(ctx, MessageMenu, action.String(), s.export)
		}
		if stop {
			return SignalStopConsume
		}
	}
}

func (s *Session) printKey(_ context.Context) error {
	s.printPayload("Key", s.current.Key)
	return nil
}

func (s *Session) printValue(_ context.Context) error {
	s.printPayload("Value", s.current.Value)
	return nil
}

func (s *Session) reprint(ctx context.Context) error {
	s.printRecord(ctx)
	return nil
}

// commitMessage 只提交当前消息所在分区的offset
func (s *Session) commitMessage(ctx context.Context) error {
	r := s.current
	ok, err := s.console.Confirm(ctx, fmt.Sprintf("Commit partition [%d] offset [%d]?", r.Partition, r.Offset))
	if err != nil {
		return err
	}
	if !ok {
		s.console.Info("Commit cancelled.")
		return nil
	}

	err = s.consumer.CommitRecord(ctx, r)
	metrics.CommitsTotal.WithLabelValues("record", metrics.Status(err)).Inc()
	if err != nil {
		s.log.Error("message commit failed",
			zap.Int32("partition", r.Partition),
			zap.Int64("offset", r.Offset),
			zap.Error(err),
		)
		s.console.Error("Error committing message: %v", err)
		return nil
	}

	s.log.Info("message committed",
		zap.Int32("partition", r.Partition),
		zap.Int64("offset", r.Offset),
	)
	s.console.Success("Partition [%d] offset [%d] committed.", r.Partition, r.Offset)
	return nil
}

func (s *Session) export(ctx context.Context) error {
	if s.exporter == nil {
		s.console.Warn("Export is not available in this session.")
		return nil
	}
	return s.exporter.Export(ctx, s.current)
}

func (s *Session) printSchemas(ctx context.Context) error {
	for _, side := range s.sides() {
		sch, ok := s.schemaFor(ctx, side)
		if !ok {
			continue
		}
		s.console.Title(fmt.Sprintf("%s schema (id %d, %s)", side.name, sch.ID, sch.Type))
		if sch.Type == schema.TypeProtobuf {
			s.console.Println(sch.Text)
		} else {
			s.console.JSON([]byte(sch.Text))
		}
		for _, ref := range sch.References {
			s.console.Println(fmt.Sprintf("references %s (subject %s, version %d)", ref.Name, ref.Subject, ref.Version))
		}
	}
	return nil
}

func (s *Session) printDecoded(ctx context.Context) error {
	for _, side := range s.sides() {
		sch, ok := s.schemaFor(ctx, side)
		if !ok {
			continue
		}
		decoded, err := schema.Decode(sch, side.payload)
		if err != nil {
			s.console.Error("Error decoding %s with schema [%d]: %v", side.name, sch.ID, err)
			continue
		}
		s.console.Title(fmt.Sprintf("Decoded %s", side.name))
		s.console.Println(string(decoded))
	}
	return nil
}

// schemaFor 查询某一侧payload的schema，不可用时输出提示
func (s *Session) schemaFor(ctx context.Context, side payloadSide) (*schema.Schema, bool) {
	if !side.info.IsFramed {
		s.console.Info("%s is not encoded with a schema id.", side.name)
		return nil, false
	}
	sch, err := s.lookup.GetSchema(ctx, *side.info.SchemaID)
	if err != nil {
		s.console.Error("Error fetching %s schema [%d]: %v", side.name, *side.info.SchemaID, err)
		return nil, false
	}
	return sch, true
}
