package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"construction-safety-assistant/internal/config"
	"construction-safety-assistant/internal/logger"
	"construction-safety-assistant/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChatLogReader lists stored audit entries, newest first.
type ChatLogReader interface {
	List(ctx context.Context, filter models.ChatLogFilter) ([]models.ChatLog, error)
}

// ChatLogStore writes chat audit entries to MongoDB from background workers so
// the request path never waits on the database.
type ChatLogStore struct {
	col         *mongo.Collection
	entries     chan models.ChatLog
	workerCount int
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

func NewChatLogStore(db *mongo.Database, workerCount, buffer int) *ChatLogStore {
	if workerCount <= 0 {
		workerCount = 2
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &ChatLogStore{
		col:         db.Collection(config.ChatLogCollection),
		entries:     make(chan models.ChatLog, buffer),
		workerCount: workerCount,
	}
}

// Start launches the insert workers.
func (s *ChatLogStore) Start() {
	logger.Info("Starting chat log writer", "workers", s.workerCount)
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop closes the queue and waits for queued entries to be written.
func (s *ChatLogStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.entries)
		s.wg.Wait()
		logger.Info("Chat log writer stopped")
	})
}

// Record queues an entry. When the queue is full the entry is dropped.
func (s *ChatLogStore) Record(_ context.Context, entry models.ChatLog) {
	select {
	case s.entries <- entry:
	default:
		logger.Warn("Chat log queue full, dropping entry", "request_id", entry.RequestID)
	}
}

func (s *ChatLogStore) worker(workerID int) {
	defer s.wg.Done()
	for entry := range s.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := s.col.InsertOne(ctx, entry); err != nil {
			logger.Error("Failed to write chat log", "worker", workerID, "request_id", entry.RequestID, "error", err)
		}
		cancel()
	}
}

func (s *ChatLogStore) List(ctx context.Context, filter models.ChatLogFilter) ([]models.ChatLog, error) {
	query := bson.M{}
	if filter.SafetyNotes != "" {
		query["safety_notes"] = filter.SafetyNotes
	}
	if !filter.Since.IsZero() {
		query["timestamp"] = bson.M{"$gte": filter.Since}
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := s.col.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("finding chat logs: %w", err)
	}
	defer cursor.Close(ctx)

	logs := []models.ChatLog{}
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("decoding chat logs: %w", err)
	}
	return logs, nil
}

// OutcomeCounts groups entries since the given time by outcome.
func (s *ChatLogStore) OutcomeCounts(ctx context.Context, since time.Time) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"timestamp": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{"_id": "$outcome", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregating chat logs: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Outcome string `bson:"_id"`
		Count   int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decoding outcome counts: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Outcome] = r.Count
	}
	return counts, nil
}
