package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/annel0/mmo-region/internal/logging"
	"github.com/annel0/mmo-region/internal/world"
	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

var (
	// ErrStoreClosed хранилище уже закрыто
	ErrStoreClosed = errors.New("archive store is closed")
	// ErrArchiveNotFound архива региона нет
	ErrArchiveNotFound = errors.New("region archive not found")
)

const archiveKeyPrefix = "region:"

// Кодек значения: первый байт записи
const (
	codecRaw  byte = 0
	codecZstd byte = 1
)

var _ world.ArchiveStore = (*RegionArchiveStore)(nil)

// RegionArchiveStore хранилище архивов регионов в BadgerDB.
// Архивы сжимаются zstd, если это включено.
type RegionArchiveStore struct {
	db       *badger.DB
	dbPath   string
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
	log      *logging.Logger

	mutex   sync.RWMutex
	isReady bool
}

// NewRegionArchiveStore открывает хранилище в каталоге dataPath/archives
func NewRegionArchiveStore(dataPath string, compress bool) (*RegionArchiveStore, error) {
	dbPath := filepath.Join(dataPath, "archives")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &RegionArchiveStore{
		db:       db,
		dbPath:   dbPath,
		compress: compress,
		encoder:  encoder,
		decoder:  decoder,
		log:      logging.GetComponentLogger("archive-store"),
		isReady:  true,
	}, nil
}

func archiveKey(regionID uint64) []byte {
	return []byte(fmt.Sprintf("%s%016x", archiveKeyPrefix, regionID))
}

// Close закрывает хранилище
func (s *RegionArchiveStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}

	s.isReady = false
	s.encoder.Close()
	s.decoder.Close()
	return s.db.Close()
}

// SaveArchive сохраняет архив региона, заменяя предыдущий
func (s *RegionArchiveStore) SaveArchive(ctx context.Context, regionID uint64, data []byte) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var value []byte
	if s.compress {
		value = s.encoder.EncodeAll(data, []byte{codecZstd})
	} else {
		value = append([]byte{codecRaw}, data...)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(archiveKey(regionID), value)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения архива 0x%X в BadgerDB: %w", regionID, err)
	}
	s.log.Debug("💾 Архив региона 0x%X сохранен (%d -> %d байт)", regionID, len(data), len(value))
	return nil
}

// LoadArchive загружает архив региона; ErrArchiveNotFound если его нет
func (s *RegionArchiveStore) LoadArchive(ctx context.Context, regionID uint64) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(archiveKey(regionID))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("region 0x%X: %w", regionID, ErrArchiveNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения архива 0x%X из BadgerDB: %w", regionID, err)
	}
	if len(value) == 0 {
		return nil, fmt.Errorf("архив 0x%X пуст", regionID)
	}

	switch value[0] {
	case codecRaw:
		return value[1:], nil
	case codecZstd:
		data, err := s.decoder.DecodeAll(value[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("ошибка распаковки архива 0x%X: %w", regionID, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("архив 0x%X: неизвестный кодек %d", regionID, value[0])
	}
}

// DeleteArchive удаляет архив; отсутствие архива не ошибка
func (s *RegionArchiveStore) DeleteArchive(ctx context.Context, regionID uint64) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrStoreClosed
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(archiveKey(regionID))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления архива 0x%X: %w", regionID, err)
	}
	return nil
}

// ListArchives адреса регионов с сохраненными архивами по возрастанию
func (s *RegionArchiveStore) ListArchives(ctx context.Context) ([]uint64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStoreClosed
	}

	var ids []uint64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(archiveKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id uint64
			key := it.Item().Key()
			if _, err := fmt.Sscanf(string(key[len(prefix):]), "%x", &id); err != nil {
				s.log.Warn("⚠️ Некорректный ключ архива %q: %v", key, err)
				continue
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка обхода архивов: %w", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
