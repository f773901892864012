package broker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/avvvet/pases-service/internal/comm"
	"github.com/avvvet/pases-service/internal/pasesvc/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	TopicPases       = "pases.service"
	EventPaseCreated = "pase-created"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subj string, data []byte) error
}

type Broker struct {
	Conn     Publisher
	Instance string
}

func NewBroker(nc Publisher, instance string) *Broker {
	return &Broker{
		Conn:     nc,
		Instance: instance,
	}
}

// PublishPase announces a stored record to other services.
func (b *Broker) PublishPase(rec models.PassRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal pase: %w", err)
	}

	msg := &comm.Event{
		ID:       uuid.NewString(),
		Type:     EventPaseCreated,
		Data:     data,
		Instance: b.Instance,
		SentAt:   time.Now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return b.Publish(TopicPases, payload)
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
