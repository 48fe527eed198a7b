package parking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoSlotsCollection    = "parking_slots"
	mongoBookingsCollection = "bookings"
	mongoCountersCollection = "counters"
	mongoCloseTimeout       = 5 * time.Second
)

// MongoStore implements Store on MongoDB. Bookings run inside a session
// transaction, which requires a replica set deployment.
type MongoStore struct {
	client   *mongo.Client
	slots    *mongo.Collection
	bookings *mongo.Collection
	counters *mongo.Collection
	now      func() time.Time
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(database)
	store := &MongoStore{
		client:   client,
		slots:    db.Collection(mongoSlotsCollection),
		bookings: db.Collection(mongoBookingsCollection),
		counters: db.Collection(mongoCountersCollection),
		now:      time.Now,
	}
	if _, err := store.bookings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "start_time", Value: -1}},
	}); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create booking index: %w", err)
	}
	return store, nil
}

func (m *MongoStore) nextID(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	res := m.counters.FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": 1}}, opts)
	if res.Err() != nil {
		return 0, res.Err()
	}
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&doc); err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

func equalFoldRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(strings.TrimSpace(s)) + "$", Options: "i"}
}

func containsFoldRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(strings.TrimSpace(s)), Options: "i"}
}

func (m *MongoStore) ListLocations(ctx context.Context, vehicleType string) ([]string, error) {
	values, err := m.slots.Distinct(ctx, "location", bson.M{
		"is_available": true,
		"vehicle_type": equalFoldRegex(vehicleType),
	})
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MongoStore) SearchSlots(ctx context.Context, q SearchQuery) ([]Slot, error) {
	filter := bson.M{
		"is_available": true,
		"vehicle_type": equalFoldRegex(q.VehicleType),
		"location":     containsFoldRegex(q.Location),
	}
	if st := strings.TrimSpace(q.SlotType); st != "" {
		filter["slot_type"] = equalFoldRegex(st)
	}
	cur, err := m.slots.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("search slots: %w", err)
	}
	var out []Slot
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	return out, nil
}

// BookSlot claims the slot with a conditional update and inserts the booking
// in one transaction; a concurrent loser finds no available document.
func (m *MongoStore) BookSlot(ctx context.Context, req BookingRequest) (Booking, error) {
	if err := req.Validate(); err != nil {
		return Booking{}, err
	}
	sess, err := m.client.StartSession()
	if err != nil {
		return Booking{}, fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	result, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var slot Slot
		err := m.slots.FindOneAndUpdate(sc,
			bson.M{"_id": req.SlotID, "is_available": true},
			bson.M{"$set": bson.M{"is_available": false}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&slot)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSlotUnavailable
		}
		if err != nil {
			return nil, fmt.Errorf("claim slot %d: %w", req.SlotID, err)
		}

		id, err := m.nextID(sc, mongoBookingsCollection)
		if err != nil {
			return nil, fmt.Errorf("allocate booking id: %w", err)
		}
		booking := newBooking(slot, req, m.now())
		booking.ID = id
		if _, err := m.bookings.InsertOne(sc, booking); err != nil {
			return nil, fmt.Errorf("insert booking failed: %w", err)
		}
		return booking, nil
	})
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			return Booking{}, ErrSlotUnavailable
		}
		return Booking{}, fmt.Errorf("booking transaction failed: %w", err)
	}
	return result.(Booking), nil
}

func (m *MongoStore) CreateSlot(ctx context.Context, in NewSlot) (Slot, error) {
	if err := in.Validate(); err != nil {
		return Slot{}, err
	}
	id, err := m.nextID(ctx, mongoSlotsCollection)
	if err != nil {
		return Slot{}, fmt.Errorf("allocate slot id: %w", err)
	}
	slot := Slot{
		ID:           id,
		Location:     strings.TrimSpace(in.Location),
		SlotType:     strings.TrimSpace(in.SlotType),
		VehicleType:  strings.TrimSpace(in.VehicleType),
		PricePerHour: in.PricePerHour,
		IsAvailable:  in.available(),
	}
	if _, err := m.slots.InsertOne(ctx, slot); err != nil {
		return Slot{}, fmt.Errorf("create slot: %w", err)
	}
	return slot, nil
}

func (m *MongoStore) ListSlots(ctx context.Context, skip, limit int) ([]Slot, error) {
	skip, limit = normalizePage(skip, limit)
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetSkip(int64(skip)).SetLimit(int64(limit))
	cur, err := m.slots.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	out := []Slot{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	return out, nil
}

func (m *MongoStore) CountSlots(ctx context.Context) (int, error) {
	n, err := m.slots.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count slots: %w", err)
	}
	return int(n), nil
}

func (m *MongoStore) attachSlot(ctx context.Context, b *Booking) error {
	var slot Slot
	if err := m.slots.FindOne(ctx, bson.M{"_id": b.SlotID}).Decode(&slot); err != nil {
		return fmt.Errorf("load slot %d: %w", b.SlotID, err)
	}
	b.Slot = slot
	return nil
}

func (m *MongoStore) GetBooking(ctx context.Context, id int64) (Booking, error) {
	var b Booking
	err := m.bookings.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Booking{}, ErrNotFound
	}
	if err != nil {
		return Booking{}, fmt.Errorf("get booking %d: %w", id, err)
	}
	if err := m.attachSlot(ctx, &b); err != nil {
		return Booking{}, err
	}
	return b, nil
}

func (m *MongoStore) UserBookings(ctx context.Context, userID string) ([]Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := m.bookings.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("user bookings: %w", err)
	}
	var out []Booking
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}
	for i := range out {
		if err := m.attachSlot(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, mongoCloseTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
