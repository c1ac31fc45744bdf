package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoBackend struct {
	coll *mongo.Collection
}

type mongoSession struct {
	ID        string    `bson:"_id"`
	Data      string    `bson:"data"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// NewMongoBackend stores sessions in the "sessions" collection of database.
// The state is kept as a JSON string so numbers read back the same way as in
// the other backends.
func NewMongoBackend(ctx context.Context, uri, database string) (Backend, error) {
	if uri == "" || database == "" {
		return nil, fmt.Errorf("missing MONGO_URI or MONGO_DB")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &mongoBackend{coll: client.Database(database).Collection("sessions")}, nil
}

func (b *mongoBackend) Load(ctx context.Context, id string) (map[string]any, error) {
	var doc mongoSession
	err := b.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(doc.Data), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *mongoBackend) Save(ctx context.Context, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = b.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"data": string(raw), "updatedAt": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	return err
}
