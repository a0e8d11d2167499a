package receipt

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketName       = "receipts"
	exportBucketName = "exports"
)

// DB is the record store. Every call is read-your-writes.
type DB interface {
	// SaveReceipt inserts or replaces a receipt. New receipts get the next Seq.
	SaveReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id string) (*Receipt, error)

	// ListReceipts returns all receipts in creation order
	ListReceipts() ([]*Receipt, error)

	// DeleteReceipt removes a receipt, failing if it does not exist
	DeleteReceipt(id string) error

	// SaveExportRun appends an export run to the history
	SaveExportRun(run *ExportRun) error

	// ListExportRuns returns the export history, oldest first
	ListExportRuns() ([]*ExportRun, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the database file at path
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketName, exportBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveReceipt saves a receipt to the database
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if receipt.Seq == 0 {
			seq, err := bucket.NextSequence()
			if err != nil {
				return fmt.Errorf("allocating sequence: %w", err)
			}
			receipt.Seq = seq
		}
		data, err := json.Marshal(receipt)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		return bucket.Put([]byte(receipt.ID), data)
	})
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id string) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return &NotFoundError{ID: id}
		}
		return json.Unmarshal(data, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListReceipts returns all receipts ordered by Seq
func (b *BoltDB) ListReceipts() ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt %s: %w", k, err)
			}
			receipts = append(receipts, &receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(receipts, func(a, b *Receipt) int {
		return compareSeq(a.Seq, b.Seq)
	})
	return receipts, nil
}

// DeleteReceipt removes a receipt from the database
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket.Get([]byte(id)) == nil {
			return &NotFoundError{ID: id}
		}
		return bucket.Delete([]byte(id))
	})
}

// SaveExportRun saves an export run to the database
func (b *BoltDB) SaveExportRun(run *ExportRun) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(exportBucketName))
		if run.Seq == 0 {
			seq, err := bucket.NextSequence()
			if err != nil {
				return fmt.Errorf("allocating sequence: %w", err)
			}
			run.Seq = seq
		}
		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshaling export run: %w", err)
		}
		return bucket.Put([]byte(run.ID), data)
	})
}

// ListExportRuns returns all export runs ordered by Seq
func (b *BoltDB) ListExportRuns() ([]*ExportRun, error) {
	runs := make([]*ExportRun, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(exportBucketName)).ForEach(func(k, v []byte) error {
			var run ExportRun
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("unmarshaling export run %s: %w", k, err)
			}
			runs = append(runs, &run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(runs, func(a, b *ExportRun) int {
		return compareSeq(a.Seq, b.Seq)
	})
	return runs, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func compareSeq(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
