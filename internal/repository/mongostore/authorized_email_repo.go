package mongostore

import (
	"context"
	"time"

	"MarksAPI/internal/apperr"
	"MarksAPI/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type authorizedEmailDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	AddedBy   string             `bson:"addedBy"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *authorizedEmailDoc) model() model.AuthorizedEmail {
	return model.AuthorizedEmail{
		ID:        d.ID.Hex(),
		Email:     d.Email,
		AddedBy:   d.AddedBy,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type AuthorizedEmailRepository struct {
	coll *mongo.Collection
}

func (r *AuthorizedEmailRepository) List(ctx context.Context) ([]model.AuthorizedEmail, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "email", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []model.AuthorizedEmail{}
	for cur.Next(ctx) {
		var d authorizedEmailDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, d.model())
	}
	return out, cur.Err()
}

func (r *AuthorizedEmailRepository) Exists(ctx context.Context, email string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *AuthorizedEmailRepository) Create(ctx context.Context, email, addedBy string) (*model.AuthorizedEmail, error) {
	now := time.Now()
	d := authorizedEmailDoc{
		ID:        primitive.NewObjectID(),
		Email:     email,
		AddedBy:   addedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.coll.InsertOne(ctx, d); err != nil {
		return nil, translate(err)
	}
	e := d.model()
	return &e, nil
}

func (r *AuthorizedEmailRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
