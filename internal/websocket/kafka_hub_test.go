package websocket

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	internalProto "devconnect/internal/proto"
	"devconnect/pkg/config"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKafkaHub(t *testing.T, producer sarama.SyncProducer) *KafkaHub {
	cfg := &config.KafkaConfig{TopicPrefix: "devconnect"}
	hub := newKafkaHub(producer, nil, cfg, nil)
	t.Cleanup(func() { _ = hub.Close() })
	return hub
}

func TestKafkaHub_LocalClientSkipsKafka(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	hub := newTestKafkaHub(t, producer)

	local := &fakeClient{userID: 1}
	hub.Register(local)

	require.NoError(t, hub.Notify(1, internalProto.Event{Type: internalProto.EventMessageNew}))
	assert.Len(t, local.received(), 1)
	assert.True(t, hub.IsClientConnected(1))
}

func TestKafkaHub_RemoteUserGoesThroughDirectTopic(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	var produced []byte
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "devconnect_direct", msg.Topic)
		var err error
		produced, err = msg.Value.Encode()
		return err
	})
	hub := newTestKafkaHub(t, producer)

	require.NoError(t, hub.Notify(2, internalProto.Event{Type: internalProto.EventMessageDeleted, Data: map[string]interface{}{"id": 5}}))

	var direct KafkaDirectMessage
	require.NoError(t, json.Unmarshal(produced, &direct))
	assert.Equal(t, uint(2), direct.UserID)

	// 另一实例消费后投递给本地连接
	other := newTestKafkaHub(t, mocks.NewSyncProducer(t, nil))
	remote := &fakeClient{userID: 2}
	other.Register(remote)
	(&kafkaConsumerHandler{hub: other}).handleDirectMessage(produced)

	require.Len(t, remote.received(), 1)
	eventType, data, _, err := internalProto.DecodeEvent(remote.received()[0])
	require.NoError(t, err)
	assert.Equal(t, internalProto.EventMessageDeleted, eventType)
	assert.Equal(t, float64(5), data["id"])
}

func TestKafkaHub_ProducerFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	hub := newTestKafkaHub(t, producer)

	err := hub.Notify(3, internalProto.Event{Type: internalProto.EventTypingStart})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
}

// fakeSession 与 fakeClaim 只实现 ConsumeClaim 用到的方法
type fakeSession struct {
	sarama.ConsumerGroupSession
	marked int
}

func (s *fakeSession) MarkMessage(_ *sarama.ConsumerMessage, _ string) { s.marked++ }

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

// expectDirectRecord 让生产者接受一条 direct 记录并把记录值追加到 records
func expectDirectRecord(t *testing.T, producer *mocks.SyncProducer, records *[][]byte) {
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "devconnect_direct", msg.Topic)
		value, err := msg.Value.Encode()
		*records = append(*records, value)
		return err
	})
}

// 每个实例拥有独立的消费者组, 所以每条记录都会被每个实例各消费一次
func consumeOnEveryInstance(t *testing.T, records [][]byte, hubs ...*KafkaHub) {
	for _, hub := range hubs {
		claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, len(records))}
		for i, record := range records {
			claim.messages <- &sarama.ConsumerMessage{Topic: "devconnect_direct", Offset: int64(i), Value: record}
		}
		close(claim.messages)

		session := &fakeSession{}
		require.NoError(t, (&kafkaConsumerHandler{hub: hub}).ConsumeClaim(session, claim))
		assert.Equal(t, len(records), session.marked)
	}
}

func TestKafkaHub_CrossInstanceDelivery(t *testing.T) {
	var records [][]byte
	producerA := mocks.NewSyncProducer(t, nil)
	expectDirectRecord(t, producerA, &records)
	producerB := mocks.NewSyncProducer(t, nil)
	expectDirectRecord(t, producerB, &records)

	hubA := newTestKafkaHub(t, producerA)
	hubB := newTestKafkaHub(t, producerB)
	alice := &fakeClient{userID: 1}
	bob := &fakeClient{userID: 2}
	hubA.Register(alice)
	hubB.Register(bob)

	require.NoError(t, hubA.Notify(2, internalProto.Event{Type: internalProto.EventMessageNew, Data: map[string]interface{}{"content": "hi bob"}}))
	require.NoError(t, hubB.Notify(1, internalProto.Event{Type: internalProto.EventConversationRead, Data: map[string]interface{}{"reader_id": 2}}))
	require.Len(t, records, 2)

	consumeOnEveryInstance(t, records, hubA, hubB)

	require.Len(t, bob.received(), 1)
	eventType, data, _, err := internalProto.DecodeEvent(bob.received()[0])
	require.NoError(t, err)
	assert.Equal(t, internalProto.EventMessageNew, eventType)
	assert.Equal(t, "hi bob", data["content"])

	require.Len(t, alice.received(), 1)
	eventType, data, _, err = internalProto.DecodeEvent(alice.received()[0])
	require.NoError(t, err)
	assert.Equal(t, internalProto.EventConversationRead, eventType)
	assert.Equal(t, float64(2), data["reader_id"])
}

func TestInstanceGroupID(t *testing.T) {
	assert.Equal(t, "devconnect-relay-pod-a", instanceGroupID("devconnect-relay", "pod-a"))

	first := instanceGroupID("devconnect-relay", "")
	second := instanceGroupID("devconnect-relay", "")
	assert.True(t, strings.HasPrefix(first, "devconnect-relay-"))
	assert.NotEqual(t, first, second)
}

func TestKafkaHub_ConnectionEventsKeepOrderAcrossReconnect(t *testing.T) {
	hub := newTestKafkaHub(t, mocks.NewSyncProducer(t, nil))
	log := newPresenceLog(20 * time.Millisecond)
	hub.SetEventHandler(log)

	assertReconnectOrder(t, hub, log)
}
