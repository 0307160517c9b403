// Package mongostore persists users, marks and authorized emails in MongoDB
// using the collection and field names of the original deployment, so an
// existing database can be served unchanged.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarksAPI/internal/apperr"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection            = "users"
	marksCollection            = "marks"
	authorizedEmailsCollection = "authorizedemails"

	DefaultDatabase = "marks"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects, pings and makes sure the unique indexes exist.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	if database == "" {
		database = DefaultDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	s := &Store{client: client, db: client.Database(database)}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := func(keys ...string) mongo.IndexModel {
		d := bson.D{}
		for _, k := range keys {
			d = append(d, bson.E{Key: k, Value: 1})
		}
		return mongo.IndexModel{Keys: d, Options: options.Index().SetUnique(true)}
	}
	specs := map[string][]mongo.IndexModel{
		usersCollection:            {unique("email")},
		authorizedEmailsCollection: {unique("email")},
		marksCollection: {
			unique("studentId"),
			unique("addedBy"),
			{Keys: bson.D{{Key: "overallMarks", Value: 1}}},
			{Keys: bson.D{{Key: "fatMarks", Value: 1}}},
		},
	}
	for coll, models := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{coll: s.db.Collection(usersCollection)}
}

func (s *Store) Marks() *MarksRepository {
	return &MarksRepository{coll: s.db.Collection(marksCollection)}
}

func (s *Store) AuthorizedEmails() *AuthorizedEmailRepository {
	return &AuthorizedEmailRepository{coll: s.db.Collection(authorizedEmailsCollection)}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.client.Disconnect(ctx)
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return apperr.ErrDuplicate
	}
	return err
}
