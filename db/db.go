package db

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v2"

	"hookvault/config"
	"hookvault/logs"
	"hookvault/vm"
)

var ErrClosed = errors.New("database is not initialized or closed")

// Manager 封装 BadgerDB 的管理器
type Manager struct {
	mu sync.RWMutex
	Db *badger.DB
}

// NewManager 按配置打开（或创建）数据库
func NewManager(cfg config.DatabaseConfig) (*Manager, error) {
	if cfg.InMemory {
		return NewInMemoryManager()
	}
	opts := badger.DefaultOptions(cfg.Path).
		WithLogger(nil).
		WithSyncWrites(cfg.SyncWrites)
	if cfg.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(cfg.ValueLogFileSize)
	}
	// badger v2 不自动创建父目录，需要手动创建
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}
	return open(opts)
}

// NewInMemoryManager 纯内存数据库，测试用
func NewInMemoryManager() (*Manager, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(opts badger.Options) (*Manager, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	logs.Debug("[db] opened badger at %q (in-memory=%v)", opts.Dir, opts.InMemory)
	return &Manager{Db: db}, nil
}

func (manager *Manager) db() (*badger.DB, error) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	if manager.Db == nil {
		return nil, ErrClosed
	}
	return manager.Db, nil
}

// Get 实现 vm.DBManager 接口；key 不存在时返回 (nil, nil)
func (manager *Manager) Get(key string) ([]byte, error) {
	db, err := manager.db()
	if err != nil {
		return nil, err
	}

	var value []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Scan scans all keys with the given prefix and returns a map of key-value pairs
func (manager *Manager) Scan(prefix string) (map[string][]byte, error) {
	db, err := manager.db()
	if err != nil {
		return nil, err
	}

	result := make(map[string][]byte)
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[string(k)] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Commit 在单个 badger 事务里应用整组写操作，要么全部落盘要么全部不落
func (manager *Manager) Commit(ops []vm.WriteOp) error {
	if len(ops) == 0 {
		return nil
	}
	db, err := manager.db()
	if err != nil {
		return err
	}
	return db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			var err error
			if op.Del {
				err = txn.Delete([]byte(op.Key))
			} else {
				err = txn.Set([]byte(op.Key), op.Value)
			}
			if err != nil {
				return fmt.Errorf("%s %q: %w", op.Category, op.Key, err)
			}
		}
		return nil
	})
}

// Size LSM 与 value log 的磁盘占用
func (manager *Manager) Size() (lsm, vlog int64) {
	db, err := manager.db()
	if err != nil {
		return 0, 0
	}
	return db.Size()
}

func (manager *Manager) Close() {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	if manager.Db != nil {
		if err := manager.Db.Close(); err != nil {
			logs.Error("[db.Close] %v", err)
		}
		manager.Db = nil
	}
}
