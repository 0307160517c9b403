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

type userDoc struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	Email             string             `bson:"email"`
	OTP               *string            `bson:"otp,omitempty"`
	OTPExpiry         *time.Time         `bson:"otpExpiry,omitempty"`
	IsVerified        bool               `bson:"isVerified"`
	HasSubmittedMarks bool               `bson:"hasSubmittedMarks"`
	CreatedAt         time.Time          `bson:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt"`
}

func (d *userDoc) model() *model.User {
	return &model.User{
		ID:                d.ID.Hex(),
		Email:             d.Email,
		OTP:               d.OTP,
		OTPExpiresAt:      d.OTPExpiry,
		IsVerified:        d.IsVerified,
		HasSubmittedMarks: d.HasSubmittedMarks,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

type UserRepository struct {
	coll *mongo.Collection
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var d userDoc
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&d); err != nil {
		return nil, translate(err)
	}
	return d.model(), nil
}

func (r *UserRepository) UpsertOTP(ctx context.Context, email, code string, expiresAt time.Time) (*model.User, error) {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{"otp": code, "otpExpiry": expiresAt, "updatedAt": now},
		"$setOnInsert": bson.M{
			"isVerified":        false,
			"hasSubmittedMarks": false,
			"createdAt":         now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var d userDoc
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"email": email}, update, opts).Decode(&d); err != nil {
		return nil, translate(err)
	}
	return d.model(), nil
}

// ConsumeOTP matches on the stored code so the clear happens at most once.
func (r *UserRepository) ConsumeOTP(ctx context.Context, userID, code string) (*model.User, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	update := bson.M{
		"$set":   bson.M{"isVerified": true, "updatedAt": time.Now()},
		"$unset": bson.M{"otp": "", "otpExpiry": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d userDoc
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id, "otp": code}, update, opts).Decode(&d); err != nil {
		return nil, translate(err)
	}
	return d.model(), nil
}

func (r *UserRepository) SetSubmittedMarks(ctx context.Context, email string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"hasSubmittedMarks": true, "updatedAt": time.Now()}},
	)
	return err
}
