// Package archive keeps a rolling copy of everything published on the
// room events topic in MongoDB. Documents expire through a TTL index,
// so the collection stays bounded without a cleanup job.
package archive

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/avvvet/bingo-rooms/internal/comm"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const eventCollection = "room_events"

func ConnectToDB() (*mongo.Database, context.CancelFunc, error) {
	mongoURI := os.Getenv("MONGODB_URI")

	uri, err := url.Parse(mongoURI)
	if err != nil {
		log.Fatalf("Error parsing MongoDB URI: %v", err)
		return nil, nil, err
	}

	dbName := strings.TrimPrefix(uri.Path, "/")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatalf("Error connecting to MongoDB: %v", err)
		return nil, nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatalf("Error pinging MongoDB: %v", err)
		return nil, nil, err
	}

	db := client.Database(dbName)

	return db, cancel, nil
}

func CreateTTLIndexForCollection(db *mongo.Database, collectionName string) {
	collection := db.Collection(collectionName)

	// Define the TTL index
	indexModel := mongo.IndexModel{
		Keys:    bson.M{"expires_at": 1},
		Options: options.Index().SetExpireAfterSeconds(0), // 0 means that MongoDB will calculate the TTL based on the `ExpiresAt` field.
	}

	// Create the TTL index
	_, err := collection.Indexes().CreateOne(context.TODO(), indexModel)
	if err != nil {
		log.Fatal(err)
	}
}

// EventDoc is one archived room event.
type EventDoc struct {
	Type       string    `bson:"type"`
	Room       string    `bson:"room,omitempty"`
	SocketId   string    `bson:"socketid,omitempty"`
	Data       bson.M    `bson:"data,omitempty"`
	ReceivedAt time.Time `bson:"received_at"`
	ExpiresAt  time.Time `bson:"expires_at"`
}

type Store struct {
	coll      *mongo.Collection
	retention time.Duration
}

func NewStore(db *mongo.Database, retention time.Duration) *Store {
	CreateTTLIndexForCollection(db, eventCollection)
	return &Store{
		coll:      db.Collection(eventCollection),
		retention: retention,
	}
}

// SaveEvent archives one envelope from the events topic. Payloads are
// stored as documents, not raw bytes, so they stay queryable.
func (s *Store) SaveEvent(ctx context.Context, msg *comm.WSMessage) error {
	doc := EventDoc{
		Type:       msg.Type,
		Room:       msg.Room,
		SocketId:   msg.SocketId,
		ReceivedAt: time.Now(),
		ExpiresAt:  time.Now().Add(s.retention),
	}
	if len(msg.Data) > 0 {
		var payload map[string]interface{}
		if err := json.Unmarshal(msg.Data, &payload); err == nil {
			doc.Data = payload
		}
	}

	_, err := s.coll.InsertOne(ctx, doc)
	return err
}

// RecentByRoom returns the room's latest events, newest first.
func (s *Store) RecentByRoom(ctx context.Context, room string, limit int64) ([]EventDoc, error) {
	opts := options.Find().
		SetSort(bson.M{"received_at": -1}).
		SetLimit(limit)

	cur, err := s.coll.Find(ctx, bson.M{"room": room}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []EventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
