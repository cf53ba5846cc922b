package sink

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default MongoDB names.
const (
	DefaultMongoDatabase   = "mendel"
	DefaultMongoCollection = "curves"
)

// MongoOptions configures a MongoSink.
type MongoOptions struct {
	URI        string
	Database   string // defaults to DefaultMongoDatabase
	Collection string // defaults to DefaultMongoCollection
}

// MongoSink stores every curve of a document as its own MongoDB document,
// tagged with the run ID so a run can be fetched back with one query.
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// pointRecord is a geom.Point in BSON form.
type pointRecord struct {
	X float64 `bson:"x"`
	Y float64 `bson:"y"`
}

type curveRecord struct {
	RunID       string      `bson:"run_id"`
	Index       int         `bson:"index"`
	Start       pointRecord `bson:"start"`
	Control1    pointRecord `bson:"control1"`
	Control2    pointRecord `bson:"control2"`
	End         pointRecord `bson:"end"`
	Fitness     float64     `bson:"fitness"`
	Generations int         `bson:"generations"`
	State       string      `bson:"state"`
	Warning     string      `bson:"warning,omitempty"`
	Width       int         `bson:"width"`
	Height      int         `bson:"height"`
	CreatedAt   time.Time   `bson:"created_at"`
}

// NewMongoSink connects to MongoDB and pings the primary.
func NewMongoSink(ctx context.Context, opts MongoOptions) (*MongoSink, error) {
	if opts.Database == "" {
		opts.Database = DefaultMongoDatabase
	}
	if opts.Collection == "" {
		opts.Collection = DefaultMongoCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoSink{
		client: client,
		coll:   client.Database(opts.Database).Collection(opts.Collection),
		now:    time.Now,
	}, nil
}

// Publish inserts one record per curve. Documents without curves are skipped.
func (s *MongoSink) Publish(ctx context.Context, doc *Document) error {
	records := curveRecords(doc, s.now())
	if len(records) == 0 {
		return nil
	}
	if _, err := s.coll.InsertMany(ctx, records); err != nil {
		return fmt.Errorf("insert %d curves: %w", len(records), err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func curveRecords(doc *Document, at time.Time) []any {
	out := make([]any, 0, len(doc.Curves))
	for _, c := range doc.Curves {
		b := c.Bezier
		out = append(out, curveRecord{
			RunID:       doc.RunID,
			Index:       c.Index,
			Start:       pointRecord{b.Start.X, b.Start.Y},
			Control1:    pointRecord{b.Control1.X, b.Control1.Y},
			Control2:    pointRecord{b.Control2.X, b.Control2.Y},
			End:         pointRecord{b.End.X, b.End.Y},
			Fitness:     c.Fitness,
			Generations: c.Generations,
			State:       c.State,
			Warning:     c.Warning,
			Width:       doc.Width,
			Height:      doc.Height,
			CreatedAt:   at,
		})
	}
	return out
}

var _ Publisher = (*MongoSink)(nil)
