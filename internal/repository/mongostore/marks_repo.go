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

type marksDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	StudentID       string             `bson:"studentId"`
	TheoryComponent float64            `bson:"theoryComponent"`
	LabComponent    float64            `bson:"labComponent"`
	FatMarks        float64            `bson:"fatMarks"`
	OverallMarks    float64            `bson:"overallMarks"`
	AddedBy         string             `bson:"addedBy"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

func (d *marksDoc) model() model.Marks {
	return model.Marks{
		ID:              d.ID.Hex(),
		StudentID:       d.StudentID,
		TheoryComponent: d.TheoryComponent,
		LabComponent:    d.LabComponent,
		FatMarks:        d.FatMarks,
		OverallMarks:    d.OverallMarks,
		AddedBy:         d.AddedBy,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type MarksRepository struct {
	coll *mongo.Collection
}

func (r *MarksRepository) GetByOwner(ctx context.Context, email string) (*model.Marks, error) {
	var d marksDoc
	if err := r.coll.FindOne(ctx, bson.M{"addedBy": email}).Decode(&d); err != nil {
		return nil, translate(err)
	}
	m := d.model()
	return &m, nil
}

func (r *MarksRepository) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{})
}

func (r *MarksRepository) Create(ctx context.Context, m *model.Marks) error {
	now := time.Now()
	d := marksDoc{
		ID:              primitive.NewObjectID(),
		StudentID:       m.StudentID,
		TheoryComponent: m.TheoryComponent,
		LabComponent:    m.LabComponent,
		FatMarks:        m.FatMarks,
		OverallMarks:    m.OverallMarks,
		AddedBy:         m.AddedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := r.coll.InsertOne(ctx, d); err != nil {
		return translate(err)
	}
	m.ID, m.CreatedAt, m.UpdatedAt = d.ID.Hex(), now, now
	return nil
}

func (r *MarksRepository) Update(ctx context.Context, m *model.Marks) error {
	id, err := primitive.ObjectIDFromHex(m.ID)
	if err != nil {
		return apperr.ErrNotFound
	}
	m.UpdatedAt = time.Now()
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"theoryComponent": m.TheoryComponent,
		"labComponent":    m.LabComponent,
		"fatMarks":        m.FatMarks,
		"overallMarks":    m.OverallMarks,
		"updatedAt":       m.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *MarksRepository) ListByOverall(ctx context.Context) ([]model.Marks, error) {
	return r.list(ctx, bson.D{{Key: "overallMarks", Value: 1}, {Key: "studentId", Value: 1}})
}

func (r *MarksRepository) ListByFat(ctx context.Context) ([]model.Marks, error) {
	return r.list(ctx, bson.D{{Key: "fatMarks", Value: 1}, {Key: "studentId", Value: 1}})
}

func (r *MarksRepository) ListByStudentID(ctx context.Context) ([]model.Marks, error) {
	return r.list(ctx, bson.D{{Key: "studentId", Value: 1}})
}

func (r *MarksRepository) list(ctx context.Context, sort bson.D) ([]model.Marks, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []model.Marks{}
	for cur.Next(ctx) {
		var d marksDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, d.model())
	}
	return out, cur.Err()
}
