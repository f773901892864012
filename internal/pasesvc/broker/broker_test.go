package broker

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/avvvet/pases-service/internal/comm"
	"github.com/avvvet/pases-service/internal/pasesvc/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *recordingPublisher) Publish(subj string, data []byte) error {
	p.subject = subj
	p.data = data
	return p.err
}

func TestPublishPase(t *testing.T) {
	pub := &recordingPublisher{}
	b := NewBroker(pub, "instance-1")

	rec := models.PassRecord{Timestamp: "2025-05-02T12:30:00.000000Z", Para: "Ana", Pases: 2, ID: "r1", Link: "l"}
	require.NoError(t, b.PublishPase(rec))

	assert.Equal(t, TopicPases, pub.subject)

	var msg comm.Event
	require.NoError(t, json.Unmarshal(pub.data, &msg))
	assert.Equal(t, EventPaseCreated, msg.Type)
	assert.Equal(t, "instance-1", msg.Instance)
	_, err := uuid.Parse(msg.ID)
	assert.NoError(t, err)
	assert.False(t, msg.SentAt.IsZero())

	var got models.PassRecord
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, rec, got)
}

func TestPublishPaseError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats: connection closed")}
	b := NewBroker(pub, "instance-1")

	err := b.PublishPase(models.PassRecord{ID: "r1"})
	assert.Error(t, err)
}
