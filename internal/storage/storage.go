package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hailam/magicgen/internal/board"
	"github.com/hailam/magicgen/internal/magic"
)

// Storage keys
const (
	keyStats       = "stats"
	keyMagicPrefix = "magic/"
)

// MagicRecord is the cached result of one square's search.
type MagicRecord struct {
	Magic    uint64    `json:"magic"`
	Bits     uint8     `json:"bits"`
	Mask     uint64    `json:"mask"`
	Attempts uint64    `json:"attempts"`
	FoundAt  time.Time `json:"found_at"`
}

// RunStats aggregates generator runs.
type RunStats struct {
	Runs            int            `json:"runs"`
	SquaresSearched int            `json:"squares_searched"`
	SquaresReused   int            `json:"squares_reused"`
	TotalAttempts   uint64         `json:"total_attempts"`
	TotalTime       time.Duration  `json:"total_time"`
	RunsBySlider    map[string]int `json:"runs_by_slider"`
	LastRun         time.Time      `json:"last_run"`
}

// NewRunStats returns empty run statistics
func NewRunStats() *RunStats {
	return &RunStats{
		RunsBySlider: make(map[string]int),
	}
}

// RunResult summarizes a single completed Generate call.
type RunResult struct {
	Slider   board.Slider
	Searched int
	Reused   int
	Attempts uint64
	Duration time.Duration
}

// Storage wraps BadgerDB for the magic cache
type Storage struct {
	db *badger.DB
}

// NewStorage opens the database in the default data directory
func NewStorage() (*Storage, error) {
	dbDir, err := GetDatabaseDir()
	if err != nil {
		return nil, err
	}
	return Open(dbDir)
}

// Open opens (or creates) a database in dir
func Open(dir string) (*Storage, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Disable logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func magicKey(sl board.Slider, sq board.Square) []byte {
	return []byte(fmt.Sprintf("%s%s/%02d", keyMagicPrefix, sl, int(sq)))
}

// SaveSet stores every entry of set in one transaction. Records that
// already hold the same magic are left alone so their search history
// survives runs that only reused them.
func (s *Storage) SaveSet(set *magic.Set) error {
	now := time.Now()
	return s.db.Update(func(txn *badger.Txn) error {
		for sq, e := range set.Entries {
			if e == nil {
				continue
			}
			key := magicKey(set.Slider, board.Square(sq))
			if item, err := txn.Get(key); err == nil {
				var old MagicRecord
				if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &old) }); err == nil && old.Magic == e.Magic {
					continue
				}
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			data, err := json.Marshal(MagicRecord{
				Magic:    e.Magic,
				Bits:     e.Bits,
				Mask:     uint64(e.Mask),
				Attempts: e.Attempts,
				FoundAt:  now,
			})
			if err != nil {
				return err
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadRecord loads the cached record for one square
func (s *Storage) LoadRecord(sl board.Slider, sq board.Square) (*MagicRecord, bool, error) {
	var rec MagicRecord
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(magicKey(sl, sq))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil || !found {
		return nil, false, err
	}
	return &rec, true, nil
}

// LoadMagics returns the cached magic per square, 0 where none is stored.
// The result plugs into magic.GenerateOptions.Known.
func (s *Storage) LoadMagics(sl board.Slider) ([64]uint64, error) {
	var magics [64]uint64
	prefix := []byte(fmt.Sprintf("%s%s/", keyMagicPrefix, sl))

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var sq int
			if _, err := fmt.Sscanf(string(item.Key()[len(prefix):]), "%d", &sq); err != nil || sq < 0 || sq > 63 {
				continue // Foreign key
			}
			err := item.Value(func(val []byte) error {
				var rec MagicRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				magics[sq] = rec.Magic
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	return magics, err
}

// SaveStats saves run statistics
func (s *Storage) SaveStats(stats *RunStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyStats), data)
	})
}

// LoadStats loads run statistics, returns empty stats if not found
func (s *Storage) LoadStats() (*RunStats, error) {
	stats := NewRunStats()

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyStats))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil // Use empty stats
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, stats)
		})
	})

	return stats, err
}

// RecordRun folds a completed run into the statistics
func (s *Storage) RecordRun(result RunResult) error {
	stats, err := s.LoadStats()
	if err != nil {
		return err
	}
	if stats.RunsBySlider == nil {
		stats.RunsBySlider = make(map[string]int)
	}

	stats.Runs++
	stats.SquaresSearched += result.Searched
	stats.SquaresReused += result.Reused
	stats.TotalAttempts += result.Attempts
	stats.TotalTime += result.Duration
	stats.RunsBySlider[result.Slider.String()]++
	stats.LastRun = time.Now()

	return s.SaveStats(stats)
}

// AttemptsPerSquare returns the mean number of candidates per searched square
func (s *RunStats) AttemptsPerSquare() float64 {
	if s.SquaresSearched == 0 {
		return 0
	}
	return float64(s.TotalAttempts) / float64(s.SquaresSearched)
}
