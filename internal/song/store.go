package song

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

const keyPrefix = "song:"

func key(id string) []byte { return []byte(keyPrefix + id) }

// Options configures a Store.
type Options struct {
	// Dir holds the badger files. Required unless InMemory is set.
	Dir string
	// InMemory keeps everything in memory, for tests.
	InMemory bool
	Logger   *slog.Logger
}

// Store persists songs in badger as msgpack records.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens or creates a store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("song store: Dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "songs")

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger})
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{logger})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open song store: %w", err)
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create validates song, assigns an ID and timestamps, and stores it.
func (s *Store) Create(_ context.Context, song Song) (Song, error) {
	if err := song.Validate(); err != nil {
		return Song{}, err
	}
	now := s.now().UTC()
	song.ID = uuid.NewString()
	song.CreatedAt = now
	song.UpdatedAt = now

	if err := s.put(song); err != nil {
		return Song{}, err
	}
	s.logger.Info("song created", "id", song.ID, "title", song.Title)
	return song, nil
}

func (s *Store) Get(_ context.Context, id string) (Song, error) {
	var song Song
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &song)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Song{}, ErrNotFound
	}
	if err != nil {
		return Song{}, fmt.Errorf("get song %s: %w", id, err)
	}
	return song, nil
}

// List returns all songs ordered by title, then creation time.
func (s *Store) List(_ context.Context) ([]Song, error) {
	songs := []Song{}
	prefix := []byte(keyPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var song Song
			err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &song)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			songs = append(songs, song)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}

	slices.SortFunc(songs, func(a, b Song) int {
		if c := strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return songs, nil
}

// Update replaces the editable fields of an existing song.
func (s *Store) Update(ctx context.Context, song Song) (Song, error) {
	if err := song.Validate(); err != nil {
		return Song{}, err
	}
	existing, err := s.Get(ctx, song.ID)
	if err != nil {
		return Song{}, err
	}
	song.CreatedAt = existing.CreatedAt
	song.UpdatedAt = s.now().UTC()

	if err := s.put(song); err != nil {
		return Song{}, err
	}
	s.logger.Info("song updated", "id", song.ID)
	return song, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(id)); err != nil {
			return err
		}
		return txn.Delete(key(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete song %s: %w", id, err)
	}
	s.logger.Info("song deleted", "id", id)
	return nil
}

func (s *Store) put(song Song) error {
	val, err := msgpack.Marshal(&song)
	if err != nil {
		return fmt.Errorf("encode song: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(song.ID), val)
	})
	if err != nil {
		return fmt.Errorf("store song %s: %w", song.ID, err)
	}
	return nil
}

// badgerLogger routes badger's warnings and errors to slog and drops the rest.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(f string, v ...any) {
	b.l.Error(strings.TrimSpace(fmt.Sprintf(f, v...)), "source", "badger")
}

func (b badgerLogger) Warningf(f string, v ...any) {
	b.l.Warn(strings.TrimSpace(fmt.Sprintf(f, v...)), "source", "badger")
}

func (badgerLogger) Infof(string, ...any)  {}
func (badgerLogger) Debugf(string, ...any) {}
