package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	countsCollection = "daily_message_counts"
	guildsCollection = "guild_configs"
)

// Mongo stores counters and guild settings as MongoDB documents.
type Mongo struct {
	client *mongo.Client
	counts *mongo.Collection
	guilds *mongo.Collection
	now    func() time.Time
}

// OpenMongo connects to uri and ensures the unique indexes exist.
func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("mongodb uri required")
	}
	if database == "" {
		database = "katu"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client: client,
		counts: db.Collection(countsCollection),
		guilds: db.Collection(guildsCollection),
		now:    time.Now,
	}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.counts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "date", Value: 1}, {Key: "guildId", Value: 1}, {Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "guildId", Value: 1}, {Key: "date", Value: 1}, {Key: "messageCount", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create count indexes: %w", err)
	}
	_, err = m.guilds.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "guildId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create guild index: %w", err)
	}
	return nil
}

func (m *Mongo) MessageCount(ctx context.Context, date, guildID, userID string) (MessageCount, bool, error) {
	var c MessageCount
	err := m.counts.FindOne(ctx, bson.M{"date": date, "guildId": guildID, "userId": userID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return MessageCount{}, false, nil
	}
	if err != nil {
		return MessageCount{}, false, fmt.Errorf("get message count: %w", err)
	}
	return c, true, nil
}

func (m *Mongo) IncrementMessageCount(ctx context.Context, date, guildID, userID, username string) (MessageCount, error) {
	now := m.now().UTC()
	filter := bson.M{"date": date, "guildId": guildID, "userId": userID}
	update := bson.M{
		"$inc":         bson.M{"messageCount": 1},
		"$set":         bson.M{"username": username, "updatedAt": now},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var c MessageCount
	if err := m.counts.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c); err != nil {
		return MessageCount{}, fmt.Errorf("increment message count: %w", err)
	}
	return c, nil
}

func (m *Mongo) DailyRanking(ctx context.Context, date, guildID string, limit int) ([]MessageCount, error) {
	opts := options.Find().SetSort(bson.D{{Key: "messageCount", Value: -1}, {Key: "userId", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.counts.Find(ctx, bson.M{"date": date, "guildId": guildID}, opts)
	if err != nil {
		return nil, fmt.Errorf("query daily ranking: %w", err)
	}
	var out []MessageCount
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode daily ranking: %w", err)
	}
	return out, nil
}

func (m *Mongo) TotalMessages(ctx context.Context, date, guildID string) (int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"date": date, "guildId": guildID}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$messageCount"}}}},
	}
	cur, err := m.counts.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("sum messages: %w", err)
	}
	var rows []struct {
		Total int `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("decode message sum: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func (m *Mongo) GuildConfig(ctx context.Context, guildID string) (GuildConfig, bool, error) {
	var g GuildConfig
	err := m.guilds.FindOne(ctx, bson.M{"guildId": guildID}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return GuildConfig{}, false, nil
	}
	if err != nil {
		return GuildConfig{}, false, fmt.Errorf("get guild config: %w", err)
	}
	return g, true, nil
}

func (m *Mongo) SetLogChannel(ctx context.Context, guildID, channelID string) (GuildConfig, error) {
	now := m.now().UTC()
	set := bson.M{"updatedAt": now}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"timezone": DefaultTimezone, "createdAt": now},
	}
	if channelID == "" {
		update["$unset"] = bson.M{"logChannelId": ""}
	} else {
		set["logChannelId"] = channelID
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var g GuildConfig
	if err := m.guilds.FindOneAndUpdate(ctx, bson.M{"guildId": guildID}, update, opts).Decode(&g); err != nil {
		return GuildConfig{}, fmt.Errorf("set log channel: %w", err)
	}
	return g, nil
}

func (m *Mongo) PruneBefore(ctx context.Context, date string) (int, error) {
	res, err := m.counts.DeleteMany(ctx, bson.M{"date": bson.M{"$lt": date}})
	if err != nil {
		return 0, fmt.Errorf("prune message counts: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
