// Package proto 定义 WebSocket 二进制帧, 帧体为 google.protobuf.Struct
package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// 服务端推送事件类型
const (
	EventMessageNew       = "message:new"
	EventMessageDeleted   = "message:deleted"
	EventMessageEdited    = "message:edited"
	EventConversationRead = "conversation:read"
	EventTypingStart      = "typing:start"
	EventTypingStop       = "typing:stop"
)

// 客户端上行帧类型
const (
	FrameMessageSend = "message:send"
)

var ErrInvalidFrame = errors.New("invalid frame")

// Event 推送给某个用户的实时事件, Data 需可被 JSON 序列化
type Event struct {
	Type string
	Data interface{}
}

// ClientFrame 客户端通过 WebSocket 发来的帧
type ClientFrame struct {
	Type        string `json:"type"`
	RecipientID uint   `json:"recipient_id"`
	Content     string `json:"content,omitempty"`
	ReplyToID   *uint  `json:"reply_to_id,omitempty"`
}

// EncodeEvent 编码为 {type, data, sent_at}
func EncodeEvent(event Event, sentAt time.Time) ([]byte, error) {
	if event.Type == "" {
		return nil, fmt.Errorf("%w: empty event type", ErrInvalidFrame)
	}
	data, err := toValue(event.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", event.Type, err)
	}
	frame := &structpb.Struct{Fields: map[string]*structpb.Value{
		"type":    structpb.NewStringValue(event.Type),
		"data":    data,
		"sent_at": structpb.NewStringValue(sentAt.UTC().Format(time.RFC3339Nano)),
	}}
	return proto.Marshal(frame)
}

// DecodeEvent 解码服务端事件帧, data 以通用 map 形式返回
func DecodeEvent(b []byte) (eventType string, data map[string]interface{}, sentAt time.Time, err error) {
	frame := &structpb.Struct{}
	if err = proto.Unmarshal(b, frame); err != nil {
		return "", nil, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	fields := frame.GetFields()
	eventType = fields["type"].GetStringValue()
	if eventType == "" {
		return "", nil, time.Time{}, fmt.Errorf("%w: missing type", ErrInvalidFrame)
	}
	if s := fields["data"].GetStructValue(); s != nil {
		data = s.AsMap()
	}
	if ts := fields["sent_at"].GetStringValue(); ts != "" {
		sentAt, _ = time.Parse(time.RFC3339Nano, ts)
	}
	return eventType, data, sentAt, nil
}

func EncodeClientFrame(f ClientFrame) ([]byte, error) {
	s, err := toStruct(f)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func DecodeClientFrame(b []byte) (*ClientFrame, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	var f ClientFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidFrame)
	}
	return &f, nil
}

// FromJSON / ToJSON 供调试工具在 JSON 与二进制帧之间转换
func FromJSON(raw []byte) ([]byte, error) {
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func ToJSON(b []byte) ([]byte, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(b, s); err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{Multiline: true}.Marshal(s)
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return s, nil
}

func toValue(v interface{}) (*structpb.Value, error) {
	if v == nil {
		return structpb.NewNullValue(), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	val := &structpb.Value{}
	if err := protojson.Unmarshal(raw, val); err != nil {
		return nil, err
	}
	return val, nil
}
