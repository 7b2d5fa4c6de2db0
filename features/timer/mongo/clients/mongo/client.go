// Package mongo hosts the MongoDB client used by the timer store.
package mongo

//go:generate cmg gen .

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"goa.design/clue/health"

	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/timer"
)

const (
	defaultTimersCollection = "timer_schedules"
	defaultOpTimeout        = 5 * time.Second
	timerClientName         = "timer-mongo"
)

// Client exposes Mongo-backed operations for timer schedules.
type Client interface {
	health.Pinger

	UpsertTimer(ctx context.Context, t timer.Timer) error
	LoadTimer(ctx context.Context, key timer.Key) (*timer.Timer, error)
	LoadScheduledTimer(ctx context.Context, key timer.Key) (*timer.Timer, error)
	ListDueTimers(ctx context.Context, now time.Time) ([]timer.Timer, error)
	MarkTimerFired(ctx context.Context, key timer.Key, reachedAt time.Time) error
	DeleteTimer(ctx context.Context, key timer.Key) error
}

// Options configures the Mongo timer client.
type Options struct {
	Client           *mongodriver.Client
	Database         string
	TimersCollection string
	Timeout          time.Duration
}

type client struct {
	mongo   *mongodriver.Client
	timers  collection
	timeout time.Duration
}

// New returns a Client backed by MongoDB. It creates the indexes the queries
// rely on: the unique key index, the due-scan index and the correlation
// lookup index.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	timersCollection := opts.TimersCollection
	if timersCollection == "" {
		timersCollection = defaultTimersCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(timersCollection)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	wrapper := mongoCollection{coll: coll}
	if err := ensureIndexes(ctx, wrapper); err != nil {
		return nil, err
	}
	return newClientWithCollection(opts.Client, wrapper, timeout)
}

func (c *client) Name() string {
	return timerClientName
}

func (c *client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, readpref.Primary())
}

// UpsertTimer writes the full aggregate under its key. A second upsert
// replaces every field, clearing correlation_id and reached_at when the
// aggregate carries none, so the stored row always mirrors the latest save.
func (c *client) UpsertTimer(ctx context.Context, t timer.Timer) error {
	if t.TenantID == "" {
		return errors.New("tenant id is required")
	}
	if t.ServiceCallID == "" {
		return errors.New("service call id is required")
	}
	if t.DueAt.IsZero() {
		return errors.New("due_at is required")
	}

	doc := fromTimer(t)
	set := bson.M{
		"tenant_id":       doc.TenantID,
		"service_call_id": doc.ServiceCallID,
		"state":           doc.State,
		"due_at":          doc.DueAt,
		"registered_at":   doc.RegisteredAt,
	}
	unset := bson.M{}
	if doc.CorrelationID != nil {
		set["correlation_id"] = *doc.CorrelationID
	} else {
		unset["correlation_id"] = ""
	}
	if doc.ReachedAt != nil {
		set["reached_at"] = *doc.ReachedAt
	} else {
		unset["reached_at"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.timers.UpdateOne(ctx, keyFilter(t.Key()), update, options.Update().SetUpsert(true))
	return err
}

func (c *client) LoadTimer(ctx context.Context, key timer.Key) (*timer.Timer, error) {
	return c.loadOne(ctx, key, keyFilter(key))
}

// LoadScheduledTimer returns the timer under key only while it is still
// scheduled; reached rows and absent keys both yield nil.
func (c *client) LoadScheduledTimer(ctx context.Context, key timer.Key) (*timer.Timer, error) {
	filter := keyFilter(key)
	filter["state"] = string(timer.StateScheduled)
	return c.loadOne(ctx, key, filter)
}

// ListDueTimers returns every scheduled timer with due_at <= now across all
// tenants, ordered by due moment. Ties order by key so repeated scans are
// deterministic.
func (c *client) ListDueTimers(ctx context.Context, now time.Time) ([]timer.Timer, error) {
	filter := bson.M{
		"state":  string(timer.StateScheduled),
		"due_at": bson.M{"$lte": now.UTC()},
	}
	sort := bson.D{
		{Key: "due_at", Value: 1},
		{Key: "tenant_id", Value: 1},
		{Key: "service_call_id", Value: 1},
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	cur, err := c.timers.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cur.Close(ctx)
	}()
	var out []timer.Timer
	for cur.Next(ctx) {
		var doc timerDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toTimer())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkTimerFired transitions the row from scheduled to reached in one
// conditional update. The state filter makes it idempotent: a second call
// matches nothing and the first reached_at survives, and a missing key is a
// no-op.
func (c *client) MarkTimerFired(ctx context.Context, key timer.Key, reachedAt time.Time) error {
	if key.TenantID == "" {
		return errors.New("tenant id is required")
	}
	if key.ServiceCallID == "" {
		return errors.New("service call id is required")
	}
	filter := keyFilter(key)
	filter["state"] = string(timer.StateScheduled)
	update := bson.M{
		"$set": bson.M{
			"state":      string(timer.StateReached),
			"reached_at": reachedAt.UTC(),
		},
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.timers.UpdateOne(ctx, filter, update)
	return err
}

func (c *client) DeleteTimer(ctx context.Context, key timer.Key) error {
	if key.TenantID == "" {
		return errors.New("tenant id is required")
	}
	if key.ServiceCallID == "" {
		return errors.New("service call id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.timers.DeleteOne(ctx, keyFilter(key))
	return err
}

func (c *client) loadOne(ctx context.Context, key timer.Key, filter bson.M) (*timer.Timer, error) {
	if key.TenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	if key.ServiceCallID == "" {
		return nil, errors.New("service call id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var doc timerDocument
	if err := c.timers.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	out := doc.toTimer()
	return &out, nil
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func keyFilter(key timer.Key) bson.M {
	return bson.M{
		"tenant_id":       key.TenantID.String(),
		"service_call_id": key.ServiceCallID.String(),
	}
}

type timerDocument struct {
	TenantID      string     `bson:"tenant_id"`
	ServiceCallID string     `bson:"service_call_id"`
	State         string     `bson:"state"`
	DueAt         time.Time  `bson:"due_at"`
	RegisteredAt  time.Time  `bson:"registered_at"`
	CorrelationID *string    `bson:"correlation_id,omitempty"`
	ReachedAt     *time.Time `bson:"reached_at,omitempty"`
}

func fromTimer(t timer.Timer) timerDocument {
	doc := timerDocument{
		TenantID:      t.TenantID.String(),
		ServiceCallID: t.ServiceCallID.String(),
		State:         string(t.State),
		DueAt:         t.DueAt.UTC(),
		RegisteredAt:  t.RegisteredAt.UTC(),
	}
	if t.CorrelationID != nil {
		s := t.CorrelationID.String()
		doc.CorrelationID = &s
	}
	if t.ReachedAt != nil {
		at := t.ReachedAt.UTC()
		doc.ReachedAt = &at
	}
	return doc
}

func (doc timerDocument) toTimer() timer.Timer {
	t := timer.Timer{
		TenantID:      timer.TenantID(doc.TenantID),
		ServiceCallID: timer.ServiceCallID(doc.ServiceCallID),
		State:         timer.State(doc.State),
		DueAt:         doc.DueAt.UTC(),
		RegisteredAt:  doc.RegisteredAt.UTC(),
	}
	if doc.CorrelationID != nil {
		corr := timer.CorrelationID(*doc.CorrelationID)
		t.CorrelationID = &corr
	}
	if doc.ReachedAt != nil {
		at := doc.ReachedAt.UTC()
		t.ReachedAt = &at
	}
	return t
}

func ensureIndexes(ctx context.Context, timersColl collection) error {
	keyIndex := mongodriver.IndexModel{
		Keys: bson.D{
			{Key: "tenant_id", Value: 1},
			{Key: "service_call_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	if _, err := timersColl.Indexes().CreateOne(ctx, keyIndex); err != nil {
		return err
	}
	// Covers the polling scan: state equality plus due_at range and sort.
	dueIndex := mongodriver.IndexModel{
		Keys: bson.D{
			{Key: "state", Value: 1},
			{Key: "due_at", Value: 1},
		},
	}
	if _, err := timersColl.Indexes().CreateOne(ctx, dueIndex); err != nil {
		return err
	}
	correlationIndex := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "correlation_id", Value: 1}},
		Options: options.Index().SetSparse(true),
	}
	if _, err := timersColl.Indexes().CreateOne(ctx, correlationIndex); err != nil {
		return err
	}
	return nil
}

func newClientWithCollection(mongoClient *mongodriver.Client, timersColl collection, timeout time.Duration) (*client, error) {
	if timersColl == nil {
		return nil, errors.New("collection is required")
	}
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &client{
		mongo:   mongoClient,
		timers:  timersColl,
		timeout: timeout,
	}, nil
}

type collection interface {
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (cursor, error)
	UpdateOne(ctx context.Context, filter any, update any,
		opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any,
		opts ...*options.DeleteOptions) (*mongodriver.DeleteResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel,
		opts ...*options.CreateIndexesOptions) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type cursor interface {
	Close(ctx context.Context) error
	Decode(val any) error
	Err() error
	Next(ctx context.Context) bool
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult {
	return mongoSingleResult{res: c.coll.FindOne(ctx, filter, opts...)}
}

func (c mongoCollection) Find(ctx context.Context, filter any, opts ...*options.FindOptions) (cursor, error) {
	cur, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return mongoCursor{cur: cur}, nil
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter any, update any,
	opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update, opts...)
}

func (c mongoCollection) DeleteOne(ctx context.Context, filter any,
	opts ...*options.DeleteOptions) (*mongodriver.DeleteResult, error) {
	return c.coll.DeleteOne(ctx, filter, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoSingleResult struct {
	res *mongodriver.SingleResult
}

func (r mongoSingleResult) Decode(val any) error {
	return r.res.Decode(val)
}

type mongoCursor struct {
	cur *mongodriver.Cursor
}

func (c mongoCursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}

func (c mongoCursor) Decode(val any) error {
	return c.cur.Decode(val)
}

func (c mongoCursor) Err() error {
	return c.cur.Err()
}

func (c mongoCursor) Next(ctx context.Context) bool {
	return c.cur.Next(ctx)
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel,
	opts ...*options.CreateIndexesOptions) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}
