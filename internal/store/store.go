// Package store is the database of installed specs.
//
// Records live in badger under these keys:
//
//	spec/<hash>               JSON encoded Record
//	name/<name>/<hash>        index by package name
//	dependent/<child>/<hash>  child is a direct dependency of hash
package store

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v4"

	"github.com/goplus/spk/pkgs/spec"
	"github.com/goplus/spk/pkgs/version"
)

var (
	ErrNotFound = errors.New("spec not installed")
	// ErrHasDependents is returned when removing a record that other
	// installed specs depend on.
	ErrHasDependents = errors.New("spec has installed dependents")
	// ErrAmbiguous is returned when a hash prefix matches several records.
	ErrAmbiguous = errors.New("ambiguous hash prefix")
)

const (
	specPrefix      = "spec/"
	namePrefix      = "name/"
	dependentPrefix = "dependent/"
)

// Options configures Open.
type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	Logger   *log.Logger
}

// DB is the install database. It is safe for concurrent use.
type DB struct {
	db *badger.DB
}

type badgerLogger struct {
	l *log.Logger
}

func (b badgerLogger) Errorf(format string, args ...any)   { b.l.Errorf(strings.TrimSpace(format), args...) }
func (b badgerLogger) Warningf(format string, args ...any) { b.l.Warnf(strings.TrimSpace(format), args...) }
func (b badgerLogger) Infof(format string, args ...any)    { b.l.Debugf(strings.TrimSpace(format), args...) }
func (b badgerLogger) Debugf(format string, args ...any)   { b.l.Debugf(strings.TrimSpace(format), args...) }

// Open opens or creates the database.
func Open(opts Options) (*DB, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errors.New("database path is empty")
		}
		if err := os.MkdirAll(opts.Path, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		bopts = badger.DefaultOptions(opts.Path).WithSyncWrites(true)
	}
	bopts = bopts.WithNumVersionsToKeep(1)
	if opts.Logger != nil {
		bopts = bopts.WithLogger(badgerLogger{opts.Logger})
	} else {
		bopts = bopts.WithLogger(nil)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Register records s as installed at prefix. Registering a hash again
// replaces its record but keeps the earliest install time and marks it
// explicit if either registration was.
func (d *DB) Register(s spec.ConcreteSpec, prefix string, explicit bool) error {
	data, err := s.Sub().EncodeYAML()
	if err != nil {
		return err
	}
	rec := &Record{
		Hash:        s.Hash(),
		Name:        s.Name(),
		Version:     s.Version().String(),
		Prefix:      prefix,
		Explicit:    explicit,
		InstalledAt: time.Now().UTC(),
		Spec:        string(data),
	}
	return d.db.Update(func(txn *badger.Txn) error {
		if old, err := getRecord(txn, rec.Hash); err == nil {
			rec.InstalledAt = old.InstalledAt
			rec.Explicit = rec.Explicit || old.Explicit
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		val, err := rec.encode()
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(specPrefix+rec.Hash), val); err != nil {
			return err
		}
		if err := txn.Set(nameKey(rec.Name, rec.Hash), nil); err != nil {
			return err
		}
		for _, e := range s.Dependencies() {
			if err := txn.Set(dependentKey(e.Spec.Hash(), rec.Hash), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func nameKey(name, hash string) []byte {
	return []byte(namePrefix + name + "/" + hash)
}

func dependentKey(child, parent string) []byte {
	return []byte(dependentPrefix + child + "/" + parent)
}

func getRecord(txn *badger.Txn, hash string) (*Record, error) {
	item, err := txn.Get([]byte(specPrefix + hash))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: /%s", ErrNotFound, hash)
		}
		return nil, err
	}
	var rec *Record
	err = item.Value(func(val []byte) error {
		rec, err = decodeRecord(val)
		return err
	})
	return rec, err
}

// Get returns the record of a full hash.
func (d *DB) Get(hash string) (*Record, error) {
	var rec *Record
	err := d.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, hash)
		return err
	})
	return rec, err
}

// Has reports whether hash is installed.
func (d *DB) Has(hash string) bool {
	_, err := d.Get(hash)
	return err == nil
}

// ByHashPrefix returns the single record whose hash starts with prefix.
func (d *DB) ByHashPrefix(prefix string) (*Record, error) {
	var found []*Record
	err := d.db.View(func(txn *badger.Txn) error {
		return scan(txn, specPrefix+prefix, func(_ []byte, val []byte) error {
			rec, err := decodeRecord(val)
			if err != nil {
				return err
			}
			found = append(found, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: /%s", ErrNotFound, prefix)
	case 1:
		return found[0], nil
	}
	return nil, fmt.Errorf("%w: /%s matches %d specs", ErrAmbiguous, prefix, len(found))
}

// scan calls f for every key with the given prefix.
func scan(txn *badger.Txn, prefix string, f func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := f(item.KeyCopy(nil), val); err != nil {
			return err
		}
	}
	return nil
}

// All returns every record ordered by name, then newest version first, then
// hash.
func (d *DB) All() ([]*Record, error) {
	var out []*Record
	err := d.db.View(func(txn *badger.Txn) error {
		return scan(txn, specPrefix, func(_ []byte, val []byte) error {
			rec, err := decodeRecord(val)
			if err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortRecords(out)
	return out, nil
}

func sortRecords(recs []*Record) {
	slices.SortFunc(recs, func(a, b *Record) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		va, _ := version.Parse(a.Version)
		vb, _ := version.Parse(b.Version)
		if c := version.Compare(vb, va); c != 0 {
			return c
		}
		return strings.Compare(a.Hash, b.Hash)
	})
}

// ByName returns the records of one package.
func (d *DB) ByName(name string) ([]*Record, error) {
	var out []*Record
	err := d.db.View(func(txn *badger.Txn) error {
		return scan(txn, namePrefix+name+"/", func(key, _ []byte) error {
			hash := strings.TrimPrefix(string(key), namePrefix+name+"/")
			rec, err := getRecord(txn, hash)
			if err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortRecords(out)
	return out, nil
}

// Dependents returns the hashes of installed specs depending directly on
// hash.
func (d *DB) Dependents(hash string) ([]string, error) {
	var out []string
	prefix := dependentPrefix + hash + "/"
	err := d.db.View(func(txn *badger.Txn) error {
		return scan(txn, prefix, func(key, _ []byte) error {
			out = append(out, strings.TrimPrefix(string(key), prefix))
			return nil
		})
	})
	return out, err
}

// Remove deletes the record of hash. It fails with ErrHasDependents while
// other records depend on it.
func (d *DB) Remove(hash string) error {
	return d.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, hash)
		if err != nil {
			return err
		}
		var dependents []string
		prefix := dependentPrefix + hash + "/"
		err = scan(txn, prefix, func(key, _ []byte) error {
			dependents = append(dependents, strings.TrimPrefix(string(key), prefix))
			return nil
		})
		if err != nil {
			return err
		}
		if len(dependents) > 0 {
			return fmt.Errorf("%w: %s is needed by %s", ErrHasDependents, rec.Name, strings.Join(dependents, ", "))
		}
		dag, err := rec.DAG()
		if err != nil {
			return err
		}
		for _, e := range dag.Root().Dependencies() {
			if err := txn.Delete(dependentKey(e.Spec.Hash(), hash)); err != nil {
				return err
			}
		}
		if err := txn.Delete(nameKey(rec.Name, hash)); err != nil {
			return err
		}
		return txn.Delete([]byte(specPrefix + hash))
	})
}

// Query returns the records matching q. An empty q matches everything, a q
// starting with / matches a hash prefix, anything else is parsed as a spec
// that installed roots must satisfy.
func (d *DB) Query(q string) ([]*Record, error) {
	q = strings.TrimSpace(q)
	switch {
	case q == "":
		return d.All()
	case strings.HasPrefix(q, "/"):
		rec, err := d.ByHashPrefix(q[1:])
		if err != nil {
			return nil, err
		}
		return []*Record{rec}, nil
	}
	want, err := spec.Parse(q)
	if err != nil {
		return nil, err
	}
	var recs []*Record
	if want.Name != "" {
		recs, err = d.ByName(want.Name)
	} else {
		recs, err = d.All()
	}
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, rec := range recs {
		dag, err := rec.DAG()
		if err != nil {
			return nil, fmt.Errorf("failed to read record %s: %w", rec.Hash, err)
		}
		if dag.Root().Satisfies(want) {
			out = append(out, rec)
		}
	}
	return out, nil
}
