package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	colNotepads = "notepads"
	colFeedback = "feedback"
	colFiles    = "files"
	colCounters = "counters"
)

type MongoNotepadRepository struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoNotepadRepository(ctx context.Context, uri, dbName string) (*MongoNotepadRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	m := &MongoNotepadRepository{client: client, db: client.Database(dbName)}
	if err := m.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *MongoNotepadRepository) ensureIndexes(ctx context.Context) error {
	byNotepad := mongo.IndexModel{Keys: bson.D{{Key: "notepad_id", Value: 1}}}
	if _, err := m.db.Collection(colFeedback).Indexes().CreateOne(ctx, byNotepad); err != nil {
		return fmt.Errorf("create feedback index: %w", err)
	}
	if _, err := m.db.Collection(colFiles).Indexes().CreateOne(ctx, byNotepad); err != nil {
		return fmt.Errorf("create files index: %w", err)
	}

	return nil
}

func (m *MongoNotepadRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoNotepadRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return m.client.Disconnect(ctx)
}

func (m *MongoNotepadRepository) CreateNotepad(ctx context.Context, params CreateNotepadParams) (Notepad, error) {
	now := time.Now().UTC()
	n := Notepad{
		Id:                    params.Id,
		PasswordHash:          params.PasswordHash,
		AlternatePasswordHash: params.AlternatePasswordHash,
		LastModified:          now,
		CreatedAt:             now,
	}

	if _, err := m.db.Collection(colNotepads).InsertOne(ctx, n); err != nil {
		return Notepad{}, err
	}

	return n, nil
}

func (m *MongoNotepadRepository) GetNotepad(ctx context.Context, id string) (Notepad, error) {
	var n Notepad
	err := m.db.Collection(colNotepads).FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Notepad{}, fmt.Errorf("notepad %q: %w", id, ErrNotFound)
	}

	return n, err
}

func (m *MongoNotepadRepository) UpdateNotepadContent(ctx context.Context, params UpdateContentParams) error {
	res, err := m.db.Collection(colNotepads).UpdateOne(ctx,
		bson.M{"_id": params.NotepadId},
		bson.M{"$set": bson.M{
			"content":       params.Content,
			"last_editor":   params.Editor,
			"last_modified": params.Timestamp,
		}},
	)
	if err != nil {
		return err
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("notepad %q: %w", params.NotepadId, ErrNotFound)
	}

	return nil
}

func (m *MongoNotepadRepository) CreateFeedback(ctx context.Context, params CreateFeedbackParams) (Feedback, error) {
	if _, err := m.GetNotepad(ctx, params.NotepadId); err != nil {
		return Feedback{}, err
	}

	id, err := m.nextSequence(ctx, colFeedback)
	if err != nil {
		return Feedback{}, err
	}

	f := Feedback{
		Id:        id,
		NotepadId: params.NotepadId,
		Line:      params.Line,
		Text:      params.Text,
		Author:    params.Author,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := m.db.Collection(colFeedback).InsertOne(ctx, f); err != nil {
		return Feedback{}, err
	}

	return f, nil
}

func (m *MongoNotepadRepository) ListFeedback(ctx context.Context, notepadId string) ([]Feedback, error) {
	opts := options.Find().SetSort(bson.D{{Key: "line", Value: 1}, {Key: "id", Value: 1}})
	cur, err := m.db.Collection(colFeedback).Find(ctx, bson.M{"notepad_id": notepadId}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	feedback := make([]Feedback, 0)
	if err := cur.All(ctx, &feedback); err != nil {
		return nil, err
	}

	return feedback, nil
}

func (m *MongoNotepadRepository) CreateFile(ctx context.Context, params CreateFileParams) (File, error) {
	if _, err := m.GetNotepad(ctx, params.NotepadId); err != nil {
		return File{}, err
	}

	f := File{
		Id:          params.Id,
		NotepadId:   params.NotepadId,
		Name:        params.Name,
		ContentType: params.ContentType,
		Size:        params.Size,
		ObjectKey:   params.ObjectKey,
		UploadedBy:  params.UploadedBy,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := m.db.Collection(colFiles).InsertOne(ctx, f); err != nil {
		return File{}, err
	}

	return f, nil
}

func (m *MongoNotepadRepository) ListFiles(ctx context.Context, notepadId string) ([]File, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := m.db.Collection(colFiles).Find(ctx, bson.M{"notepad_id": notepadId}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	files := make([]File, 0)
	if err := cur.All(ctx, &files); err != nil {
		return nil, err
	}

	return files, nil
}

func (m *MongoNotepadRepository) GetFile(ctx context.Context, notepadId, fileId string) (File, error) {
	var f File
	err := m.db.Collection(colFiles).FindOne(ctx, bson.M{"_id": fileId, "notepad_id": notepadId}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return File{}, fmt.Errorf("file %q: %w", fileId, ErrNotFound)
	}

	return f, err
}

// nextSequence hands out increasing integer ids for the named sequence.
func (m *MongoNotepadRepository) nextSequence(ctx context.Context, name string) (int, error) {
	var counter struct {
		Seq int `bson:"seq"`
	}

	err := m.db.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next sequence %q: %w", name, err)
	}

	return counter.Seq, nil
}
