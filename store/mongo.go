package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/BaSui01/demoforge/types"
)

// MongoStore implements Store on a MongoDB database. Entities map to the
// owners, documents and artifacts collections using their bson tags.
type MongoStore struct {
	client    *mongo.Client
	db        *mongo.Database
	owners    *mongoOwnerStore
	documents *mongoDocumentStore
	artifacts *mongoArtifactStore
}

// DialMongo connects a client for NewMongoStore.
func DialMongo(uri string, connectTimeout time.Duration) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(uri)
	if connectTimeout > 0 {
		opts.SetConnectTimeout(connectTimeout)
	}
	return mongo.Connect(opts)
}

// NewMongoStore wraps a connected client and target database.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client:    client,
		db:        db,
		owners:    &mongoOwnerStore{coll: db.Collection("owners")},
		documents: &mongoDocumentStore{coll: db.Collection("documents")},
		artifacts: &mongoArtifactStore{coll: db.Collection("artifacts")},
	}
}

// EnsureIndexes creates the indexes the store depends on, most importantly
// the uniqueness of owner identity keys.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection("owners").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "identity_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = s.db.Collection("documents").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return err
	}

	_, err = s.db.Collection("artifacts").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "document_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func (s *MongoStore) Owners() OwnerStore       { return s.owners }
func (s *MongoStore) Documents() DocumentStore { return s.documents }
func (s *MongoStore) Artifacts() ArtifactStore { return s.artifacts }

func (s *MongoStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ---------------------------------------------------------------------------
// Owners
// ---------------------------------------------------------------------------

type mongoOwnerStore struct {
	coll *mongo.Collection
}

func (s *mongoOwnerStore) Ensure(ctx context.Context, owner *types.Owner) (*types.Owner, error) {
	now := time.Now().UTC()
	update := bson.M{"$setOnInsert": bson.M{
		"_id":          owner.ID,
		"identity_key": owner.IdentityKey,
		"email":        owner.Email,
		"display_name": owner.DisplayName,
		"org_key":      owner.OrgKey,
		"created_at":   now,
		"updated_at":   now,
	}}

	_, err := s.coll.UpdateOne(ctx,
		bson.M{"identity_key": owner.IdentityKey},
		update,
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, err
	}

	var existing types.Owner
	if err := s.coll.FindOne(ctx, bson.M{"identity_key": owner.IdentityKey}).Decode(&existing); err != nil {
		return nil, translateMongoError(err)
	}
	return &existing, nil
}

func (s *mongoOwnerStore) Get(ctx context.Context, id string) (*types.Owner, error) {
	var owner types.Owner
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&owner); err != nil {
		return nil, translateMongoError(err)
	}
	return &owner, nil
}

func (s *mongoOwnerStore) GetByIdentityKey(ctx context.Context, identityKey string) (*types.Owner, error) {
	var owner types.Owner
	if err := s.coll.FindOne(ctx, bson.M{"identity_key": identityKey}).Decode(&owner); err != nil {
		return nil, translateMongoError(err)
	}
	return &owner, nil
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

type mongoDocumentStore struct {
	coll *mongo.Collection
}

func (s *mongoDocumentStore) Insert(ctx context.Context, doc *types.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	_, err := s.coll.InsertOne(ctx, doc)
	return translateMongoError(err)
}

func (s *mongoDocumentStore) Get(ctx context.Context, id string) (*types.Document, error) {
	var doc types.Document
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, translateMongoError(err)
	}
	return &doc, nil
}

func (s *mongoDocumentStore) Patch(ctx context.Context, id string, patch types.DocumentPatch) error {
	var current types.Document
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&current); err != nil {
		return translateMongoError(err)
	}
	if err := validateDocumentPatch(current.Status, patch); err != nil {
		return err
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.ExtractedContent != nil {
		set["extracted_content"] = *patch.ExtractedContent
	}
	if patch.Metadata != nil {
		set["metadata"] = patch.Metadata
	}

	// Filter on the observed status: a concurrent transition makes the
	// update a no-op instead of applying on top of unknown state.
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": current.Status},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (s *mongoDocumentStore) ListByOwner(ctx context.Context, ownerID string) ([]types.Document, error) {
	cursor, err := s.coll.Find(ctx,
		bson.M{"owner_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := make([]types.Document, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// ---------------------------------------------------------------------------
// Artifacts
// ---------------------------------------------------------------------------

type mongoArtifactStore struct {
	coll *mongo.Collection
}

func (s *mongoArtifactStore) Insert(ctx context.Context, artifact *types.Artifact) error {
	now := time.Now().UTC()
	artifact.CreatedAt = now
	artifact.UpdatedAt = now
	_, err := s.coll.InsertOne(ctx, artifact)
	return translateMongoError(err)
}

func (s *mongoArtifactStore) Get(ctx context.Context, id string) (*types.Artifact, error) {
	var artifact types.Artifact
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&artifact); err != nil {
		return nil, translateMongoError(err)
	}
	return &artifact, nil
}

func (s *mongoArtifactStore) Patch(ctx context.Context, id string, patch types.ArtifactPatch) error {
	var current types.Artifact
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&current); err != nil {
		return translateMongoError(err)
	}
	if err := validateArtifactPatch(current.Status, patch); err != nil {
		return err
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.GeneratedCode != nil {
		set["generated_code"] = *patch.GeneratedCode
	}
	if patch.Results != nil {
		set["results"] = patch.Results
	}
	if patch.OutputBlobID != nil {
		set["output_blob_id"] = *patch.OutputBlobID
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": current.Status},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (s *mongoArtifactStore) ListByDocument(ctx context.Context, documentID string) ([]types.Artifact, error) {
	return s.list(ctx, bson.M{"document_id": documentID})
}

func (s *mongoArtifactStore) ListByOwner(ctx context.Context, ownerID string) ([]types.Artifact, error) {
	return s.list(ctx, bson.M{"owner_id": ownerID})
}

func (s *mongoArtifactStore) list(ctx context.Context, filter bson.M) ([]types.Artifact, error) {
	cursor, err := s.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	artifacts := make([]types.Artifact, 0)
	if err := cursor.All(ctx, &artifacts); err != nil {
		return nil, err
	}
	return artifacts, nil
}

func translateMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

var _ Store = (*MongoStore)(nil)
