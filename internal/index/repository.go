// Package index is the off-chain review index: the only locally-mutable
// state of the system. It persists attestation identifiers after on-chain
// confirmation so amendment chains stay resolvable.
package index

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrReviewNotFound signals a lookup for an attestation ID no stored
// review carries. Amendment creation aborts on it: an amendment can
// never be created without a resolvable parent.
var ErrReviewNotFound = errors.New("index: no review found for attestation ID")

// IndexWriteError wraps a persistence failure that happened after the
// attestation was already confirmed on-chain. It is surfaced distinctly
// from pre-confirmation errors so operators can reconcile.
type IndexWriteError struct {
	AttestationID string
	Err           error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("index: write failed for attestation %s: %v", e.AttestationID, e.Err)
}
func (e *IndexWriteError) Unwrap() error { return e.Err }

// Repository defines the interface for off-chain index access
type Repository interface {
	GetRequestReviews(ctx context.Context, requestName string) (*RequestReviews, error)
	FindReviewByAttestationID(ctx context.Context, requestNames []string, attestationID string) (*StoredReview, error)
	AmendmentsByRefUID(ctx context.Context, refUID string) ([]StoredAmendment, error)
	SaveReview(ctx context.Context, requestName string, review StoredReview) error
	SaveAmendment(ctx context.Context, amendment StoredAmendment) error

	EnqueuePendingWrite(ctx context.Context, pending PendingIndexWrite) error
	ListPendingWrites(ctx context.Context, limit int64) ([]PendingIndexWrite, error)
	ResolvePendingWrite(ctx context.Context, id string) error
	BumpPendingWrite(ctx context.Context, id string) error
}

const (
	reviewsCollection    = "reviews"
	amendmentsCollection = "amendments"
	pendingCollection    = "pending_index_writes"
)

// MongoRepository implements Repository on a mongo database.
type MongoRepository struct {
	db *mongo.Database
}

// NewMongoRepository creates a new index repository
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{db: db}
}

func (r *MongoRepository) GetRequestReviews(ctx context.Context, requestName string) (*RequestReviews, error) {
	var doc RequestReviews
	err := r.db.Collection(reviewsCollection).
		FindOne(ctx, bson.M{"requestName": requestName}).
		Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &RequestReviews{RequestName: requestName, Reviews: []StoredReview{}}, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *MongoRepository) FindReviewByAttestationID(ctx context.Context, requestNames []string, attestationID string) (*StoredReview, error) {
	cursor, err := r.db.Collection(reviewsCollection).
		Find(ctx, bson.M{"requestName": bson.M{"$in": requestNames}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc RequestReviews
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		for i := range doc.Reviews {
			if doc.Reviews[i].AttestationID == attestationID {
				review := doc.Reviews[i]
				review.RequestName = doc.RequestName
				return &review, nil
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return nil, ErrReviewNotFound
}

// AmendmentsByRefUID returns every stored amendment for one refUID in
// insertion order (one document per amendment, natural cursor order).
func (r *MongoRepository) AmendmentsByRefUID(ctx context.Context, refUID string) ([]StoredAmendment, error) {
	cursor, err := r.db.Collection(amendmentsCollection).
		Find(ctx, bson.M{"refUID": refUID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	amendments := []StoredAmendment{}
	if err := cursor.All(ctx, &amendments); err != nil {
		return nil, err
	}
	return amendments, nil
}

// SaveReview appends the review entry to the request's document, creating
// the document on first write. Last write wins across concurrent writers.
func (r *MongoRepository) SaveReview(ctx context.Context, requestName string, review StoredReview) error {
	_, err := r.db.Collection(reviewsCollection).UpdateOne(ctx,
		bson.M{"requestName": requestName},
		bson.M{"$push": bson.M{"reviews": review}},
		options.Update().SetUpsert(true))
	if err != nil {
		return &IndexWriteError{AttestationID: review.AttestationID, Err: err}
	}
	return nil
}

func (r *MongoRepository) SaveAmendment(ctx context.Context, amendment StoredAmendment) error {
	_, err := r.db.Collection(amendmentsCollection).InsertOne(ctx, amendment)
	if err != nil {
		return &IndexWriteError{AttestationID: amendment.AttestationID, Err: err}
	}
	return nil
}

func (r *MongoRepository) EnqueuePendingWrite(ctx context.Context, pending PendingIndexWrite) error {
	_, err := r.db.Collection(pendingCollection).InsertOne(ctx, pending)
	return err
}

func (r *MongoRepository) ListPendingWrites(ctx context.Context, limit int64) ([]PendingIndexWrite, error) {
	cursor, err := r.db.Collection(pendingCollection).
		Find(ctx, bson.M{}, options.Find().SetLimit(limit).SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	pending := []PendingIndexWrite{}
	if err := cursor.All(ctx, &pending); err != nil {
		return nil, err
	}
	return pending, nil
}

func (r *MongoRepository) ResolvePendingWrite(ctx context.Context, id string) error {
	_, err := r.db.Collection(pendingCollection).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *MongoRepository) BumpPendingWrite(ctx context.Context, id string) error {
	_, err := r.db.Collection(pendingCollection).
		UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"attempts": 1}})
	return err
}
