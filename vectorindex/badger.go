package vectorindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/imwonpark/RAG-based-SE/models"
	"github.com/imwonpark/RAG-based-SE/services"
)

const inMemoryLocation = ":memory:"

var errStopScan = errors.New("stop scan")

// BadgerIndex is an exact index persisted in a BadgerDB directory. Records of
// one collection share a key prefix, so several collections can live in the
// same database.
type BadgerIndex struct {
	db     *badger.DB
	name   string
	path   string
	prefix []byte
	logger *slog.Logger
}

var _ services.VectorIndex = (*BadgerIndex)(nil)

// badgerLoggerAdapter adapts slog.Logger to the badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBadgerIndex opens the collection name in the database at path, creating
// the directory if needed. An empty path opens an in-memory database.
func OpenBadgerIndex(path, name string) (*BadgerIndex, error) {
	logger := slog.Default().With("component", "badger_index")

	var opts badger.Options
	location := path
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
		location = inMemoryLocation
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	logger.Info("opened index", "collection", name, "location", location)
	return &BadgerIndex{
		db:     db,
		name:   name,
		path:   location,
		prefix: []byte("rec/" + name + "/"),
		logger: logger,
	}, nil
}

// Close closes the database.
func (b *BadgerIndex) Close() error {
	return b.db.Close()
}

func (b *BadgerIndex) key(id string) []byte {
	return append(append([]byte{}, b.prefix...), id...)
}

func (b *BadgerIndex) Upsert(_ context.Context, records []models.IndexedRecord) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, r := range records {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to encode record %s: %w", r.ID, err)
			}
			if err := txn.Set(b.key(r.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// scan decodes every record of the collection in key order. fn may return
// errStopScan to end the scan early.
func (b *BadgerIndex) scan(ctx context.Context, fn func(models.IndexedRecord) error) error {
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = b.prefix
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var record models.IndexedRecord
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return fmt.Errorf("failed to decode record: %w", err)
			}
			if err := fn(record); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errStopScan) {
		return nil
	}
	return err
}

func (b *BadgerIndex) Query(ctx context.Context, vector []float32, k int, filter map[string]any) (*models.QueryResult, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	var hits []hit
	err := b.scan(ctx, func(r models.IndexedRecord) error {
		if !matches(r.Metadata, filter) {
			return nil
		}
		d, err := squaredL2(vector, r.Vector)
		if err != nil {
			return err
		}
		hits = append(hits, hit{record: r, distance: d})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rank(hits, k), nil
}

func (b *BadgerIndex) Find(ctx context.Context, filter map[string]any) ([]string, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	var ids []string
	err := b.scan(ctx, func(r models.IndexedRecord) error {
		if matches(r.Metadata, filter) {
			ids = append(ids, r.ID)
		}
		return nil
	})
	return ids, err
}

func (b *BadgerIndex) Delete(_ context.Context, ids []string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := txn.Delete(b.key(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerIndex) Count(_ context.Context) (int, error) {
	count := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = b.prefix
		opts.PrefetchValues = false
		iter := txn.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (b *BadgerIndex) Peek(ctx context.Context, limit int) ([]models.IndexedRecord, error) {
	var out []models.IndexedRecord
	if limit <= 0 {
		return out, nil
	}
	err := b.scan(ctx, func(r models.IndexedRecord) error {
		out = append(out, r)
		if len(out) >= limit {
			return errStopScan
		}
		return nil
	})
	return out, err
}

func (b *BadgerIndex) Reset(_ context.Context) error {
	if err := b.db.DropPrefix(b.prefix); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", b.name, err)
	}
	b.logger.Info("reset collection", "collection", b.name)
	return nil
}

func (b *BadgerIndex) Name() string { return b.name }

func (b *BadgerIndex) Location() string { return b.path }
