package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avvvet/pases-service/internal/pasesvc/models"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// paseDoc mirrors the postgres row layout.
type paseDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
	Para      string             `bson:"para"`
	Pases     int                `bson:"pases"`
	RefID     string             `bson:"ref_id"`
	Link      string             `bson:"link"`
	Usuario   string             `bson:"usuario,omitempty"`
}

// MongoStore keeps the ledger in the "pases" collection. Insertion order
// among equal created_at values follows _id.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time

	mu    sync.Mutex
	ready bool
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		coll: db.Collection(TableName),
		now:  time.Now,
	}
}

func (s *MongoStore) Ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	index := mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}},
	}
	if _, err := s.coll.Indexes().CreateOne(ctx, index); err != nil {
		return fmt.Errorf("%w: create pases index: %w", ErrPersistence, err)
	}

	s.ready = true
	log.Debug("pases collection ready")
	return nil
}

func (s *MongoStore) List(ctx context.Context) ([]models.PassRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})

	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find pases: %w", ErrPersistence, err)
	}

	var docs []paseDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode pases: %w", ErrPersistence, err)
	}

	records := make([]models.PassRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.record())
	}
	return records, nil
}

func (s *MongoStore) Append(ctx context.Context, rec models.PassRecord) (models.PassRecord, error) {
	doc := newPaseDoc(rec, s.now())

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return models.PassRecord{}, fmt.Errorf("%w: insert pase: %w", ErrPersistence, err)
	}
	return doc.record(), nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.coll.Database().Client().Disconnect(ctx)
}

// BSON dates keep milliseconds only.
func newPaseDoc(rec models.PassRecord, at time.Time) paseDoc {
	return paseDoc{
		CreatedAt: at.UTC().Truncate(time.Millisecond),
		Para:      rec.Para,
		Pases:     rec.Pases,
		RefID:     rec.ID,
		Link:      rec.Link,
		Usuario:   rec.User,
	}
}

func (d paseDoc) record() models.PassRecord {
	return models.PassRecord{
		Timestamp: models.FormatTimestamp(d.CreatedAt),
		Para:      d.Para,
		Pases:     d.Pases,
		ID:        d.RefID,
		Link:      d.Link,
		User:      d.Usuario,
	}
}
