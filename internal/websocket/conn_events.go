package websocket

import (
	"sync"

	"devconnect/internal/interfaces"
)

const connEventBuffer = 1024

type connEvent struct {
	userID    uint
	connected bool
}

// connEventQueue 按入队顺序在单个 goroutine 中调用连接事件处理器,
// 同一用户的上线与下线不会乱序到达在线状态存储
type connEventQueue struct {
	events    chan connEvent
	stop      chan struct{}
	stopOnce  sync.Once
	finished  chan struct{}
	handlerFn func() interfaces.ConnectionEventHandler
}

func newConnEventQueue(handlerFn func() interfaces.ConnectionEventHandler) *connEventQueue {
	return &connEventQueue{
		events:    make(chan connEvent, connEventBuffer),
		stop:      make(chan struct{}),
		finished:  make(chan struct{}),
		handlerFn: handlerFn,
	}
}

// push 在缓冲区满时阻塞, 队列停止后丢弃
func (q *connEventQueue) push(userID uint, connected bool) {
	select {
	case q.events <- connEvent{userID: userID, connected: connected}:
	case <-q.stop:
	}
}

func (q *connEventQueue) run() {
	defer close(q.finished)
	for {
		select {
		case e := <-q.events:
			q.dispatch(e)
		case <-q.stop:
			// 处理停止前已入队的事件
			for {
				select {
				case e := <-q.events:
					q.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

func (q *connEventQueue) dispatch(e connEvent) {
	handler := q.handlerFn()
	if handler == nil {
		return
	}
	if e.connected {
		handler.HandleUserConnected(e.userID)
	} else {
		handler.HandleUserDisconnected(e.userID)
	}
}

func (q *connEventQueue) close() {
	q.stopOnce.Do(func() { close(q.stop) })
}
