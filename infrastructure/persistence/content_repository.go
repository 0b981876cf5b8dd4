package persistence

import (
	"context"
	"errors"
	"fmt"

	"crosspost/domain/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ContentRepository reads uploaded media metadata from MongoDB. The upload
// pipeline writes these documents; the orchestrator only reads them.
type ContentRepository struct {
	coll *mongo.Collection
}

func NewContentRepository(client *mongo.Client, database string) *ContentRepository {
	return &ContentRepository{coll: client.Database(database).Collection("contents")}
}

var ErrContentNotFound = errors.New("content not found")

func (r *ContentRepository) GetContent(ctx context.Context, id string) (*model.Content, error) {
	var content model.Content
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&content)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("load content %s: %w", id, err)
	}
	return &content, nil
}
