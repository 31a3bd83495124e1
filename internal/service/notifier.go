package service

import internalProto "devconnect/internal/proto"

// Notifier 向在线用户推送实时事件, 由 websocket.Hub / websocket.KafkaHub 实现
type Notifier interface {
	Notify(userID uint, event internalProto.Event) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(uint, internalProto.Event) error { return nil }
