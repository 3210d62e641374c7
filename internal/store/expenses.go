package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"expense_tracker_bot/internal/domain"
	"expense_tracker_bot/internal/logging"
)

// Date bounds covering a user's whole ledger.
const (
	MinDate = "1900-01-01"
	MaxDate = "2100-12-31"
)

const (
	defaultOpTimeout   = 5 * time.Second
	deleteChunkSize    = 25
	deleteParallelism  = 4
	defaultLatestLimit = 5
)

// ErrRecordNotFound is returned when a (user, sort key) pair has no record.
var ErrRecordNotFound = errors.New("record not found")

type expenseCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

// Ledger stores expense records keyed by user and sort key.
type Ledger struct {
	collection expenseCollection
	logger     *logrus.Entry
	opTimeout  time.Duration
}

// NewLedger constructs a Ledger over the expenses collection.
func NewLedger(collection expenseCollection, logger *logrus.Entry) *Ledger {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Ledger{
		collection: collection,
		logger:     logger,
		opTimeout:  defaultOpTimeout,
	}
}

// Insert writes a new record. A colliding (user, sort key) pair is an error.
func (l *Ledger) Insert(ctx context.Context, record domain.ExpenseRecord) error {
	if err := l.check(ctx, record.UserID); err != nil {
		return err
	}
	if record.SortKey == "" {
		return errors.New("sort_key is required")
	}
	if record.Date == "" {
		return errors.New("date is required")
	}

	ctx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	if _, err := l.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

// QueryRange returns the records whose date lies in [start, end], both
// inclusive, ordered by sort key.
func (l *Ledger) QueryRange(ctx context.Context, userID int64, start, end string, ascending bool) ([]domain.ExpenseRecord, error) {
	if err := l.check(ctx, userID); err != nil {
		return nil, err
	}
	if start > end {
		return nil, fmt.Errorf("invalid date range %s..%s", start, end)
	}

	ctx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	filter := bson.M{
		"user_id": userID,
		"date":    bson.M{"$gte": start, "$lte": end},
	}

	records, err := l.find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}

	domain.SortRecords(records, ascending)
	return records, nil
}

// QueryLatest returns up to n most recent records, oldest first.
func (l *Ledger) QueryLatest(ctx context.Context, userID int64, n int) ([]domain.ExpenseRecord, error) {
	if err := l.check(ctx, userID); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = defaultLatestLimit
	}

	ctx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "sort_key", Value: -1}}).
		SetLimit(int64(n))

	records, err := l.find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}

	domain.SortRecords(records, true)
	return records, nil
}

// Get fetches a single record.
func (l *Ledger) Get(ctx context.Context, userID int64, sortKey string) (domain.ExpenseRecord, error) {
	if err := l.check(ctx, userID); err != nil {
		return domain.ExpenseRecord{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	result := l.collection.FindOne(ctx, recordFilter(userID, sortKey))
	if result == nil {
		return domain.ExpenseRecord{}, errors.New("find record returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ExpenseRecord{}, ErrRecordNotFound
		}
		return domain.ExpenseRecord{}, fmt.Errorf("find record: %w", err)
	}

	var record domain.ExpenseRecord
	if err := result.Decode(&record); err != nil {
		return domain.ExpenseRecord{}, fmt.Errorf("decode record: %w", err)
	}

	return record, nil
}

// Delete removes one record. Deleting a missing record is not an error; the
// boolean reports whether anything was removed.
func (l *Ledger) Delete(ctx context.Context, userID int64, sortKey string) (bool, error) {
	if err := l.check(ctx, userID); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	result, err := l.collection.DeleteOne(ctx, recordFilter(userID, sortKey))
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}

	return result != nil && result.DeletedCount > 0, nil
}

// DeleteBatch removes the given records in unordered chunks. Every per-item
// failure is reported in the returned error; the count covers what was
// actually removed.
func (l *Ledger) DeleteBatch(ctx context.Context, userID int64, sortKeys []string) (int64, error) {
	if err := l.check(ctx, userID); err != nil {
		return 0, err
	}
	if len(sortKeys) == 0 {
		return 0, nil
	}

	var (
		mu       sync.Mutex
		deleted  int64
		failures []error
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(deleteParallelism)

	for start := 0; start < len(sortKeys); start += deleteChunkSize {
		end := start + deleteChunkSize
		if end > len(sortKeys) {
			end = len(sortKeys)
		}
		chunk := sortKeys[start:end]

		group.Go(func() error {
			count, errs := l.deleteChunk(groupCtx, userID, chunk)

			mu.Lock()
			deleted += count
			failures = append(failures, errs...)
			mu.Unlock()

			return nil
		})
	}

	_ = group.Wait()

	if len(failures) > 0 {
		l.logger.WithFields(logging.Fields{
			"event":    "ledger_batch_delete_failed",
			"user_id":  userID,
			"failures": len(failures),
			"deleted":  deleted,
		}).Warn("batch delete finished with failures")
		return deleted, fmt.Errorf("delete batch: %w", errors.Join(failures...))
	}

	return deleted, nil
}

func (l *Ledger) deleteChunk(ctx context.Context, userID int64, chunk []string) (int64, []error) {
	ctx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	models := make([]mongo.WriteModel, 0, len(chunk))
	for _, key := range chunk {
		models = append(models, mongo.NewDeleteOneModel().SetFilter(recordFilter(userID, key)))
	}

	result, err := l.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))

	var deleted int64
	if result != nil {
		deleted = result.DeletedCount
	}
	if err == nil {
		return deleted, nil
	}

	var bulkErr mongo.BulkWriteException
	if !errors.As(err, &bulkErr) {
		return deleted, []error{fmt.Errorf("chunk of %d: %w", len(chunk), err)}
	}

	errs := make([]error, 0, len(bulkErr.WriteErrors)+1)
	for _, writeErr := range bulkErr.WriteErrors {
		key := ""
		if writeErr.Index >= 0 && writeErr.Index < len(chunk) {
			key = chunk[writeErr.Index]
		}
		errs = append(errs, fmt.Errorf("sort_key %s: %s", key, writeErr.Message))
	}
	if bulkErr.WriteConcernError != nil {
		errs = append(errs, fmt.Errorf("write concern: %s", bulkErr.WriteConcernError.Message))
	}
	return deleted, errs
}

func (l *Ledger) find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]domain.ExpenseRecord, error) {
	cursor, err := l.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := make([]domain.ExpenseRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	return records, nil
}

func (l *Ledger) check(ctx context.Context, userID int64) error {
	if l == nil || l.collection == nil {
		return errors.New("ledger is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if userID == 0 {
		return errors.New("user_id is required")
	}
	return nil
}

func recordFilter(userID int64, sortKey string) bson.M {
	return bson.M{"user_id": userID, "sort_key": sortKey}
}
