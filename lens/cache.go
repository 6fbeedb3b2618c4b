package lens

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// cachedUnit is the stored result of instrumenting one unit.
type cachedUnit struct {
	Unit   *WireUnit   `msgpack:"u"`
	Report *UnitReport `msgpack:"r"`
}

// UnitFingerprint digests the unit source together with the output relevant config.
func UnitFingerprint(u *Unit, cfg Config) (string, error) {
	source, err := MarshalUnitMsgpack(u)
	if err != nil {
		return "", err
	}
	cfgKey, err := cfg.Fingerprint()
	if err != nil {
		return "", err
	}
	return digestKey(append(source, cfgKey...)), nil
}

// ResultCache serves instrumented units by fingerprint, first from an in-memory cache, then from Storage. Only
// successful results are cached.
type ResultCache struct {
	hot   *ristretto.Cache[string, []byte]
	store Storage
	locks *stripedMutex
	log   *zap.Logger
}

// NewResultCache creates a cache backed by store, maxCost bounds the in-memory bytes.
func NewResultCache(store Storage, maxCost int64, log *zap.Logger) (*ResultCache, error) {
	if log == nil {
		log = zap.NewNop()
	}
	hot, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 10_000,
		MaxCost:     max(maxCost, 1<<20),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &ResultCache{
		hot:   hot,
		store: store,
		locks: newDefaultStripedMutex(),
		log:   log,
	}, nil
}

// Lookup returns the cached unit and report for key.
func (c *ResultCache) Lookup(key string) (*Unit, *UnitReport, bool, error) {
	var encoded []byte
	if compressed, ok := c.hot.Get(key); ok {
		var err error
		if encoded, err = S2Decompress(nil, compressed); err != nil {
			c.hot.Del(key)
			return nil, nil, false, fmt.Errorf("decompress cached unit: %w", err)
		}
	} else {
		blob, found, err := c.store.LoadState(key)
		if err != nil || !found {
			return nil, nil, false, err
		}
		encoded = blob
		c.hot.Set(key, S2Compress(nil, blob), int64(len(blob)))
	}

	var entry cachedUnit
	if err := msgpack.Unmarshal(encoded, &entry); err != nil {
		return nil, nil, false, fmt.Errorf("decode cached unit: %w", err)
	} else if entry.Unit == nil || entry.Report == nil {
		return nil, nil, false, fmt.Errorf("incomplete cache entry %q", key)
	}
	u, err := DecodeUnit(entry.Unit)
	if err != nil {
		return nil, nil, false, err
	}
	entry.Report.Cached = true
	entry.Report.Fingerprint = key
	return u, entry.Report, true, nil
}

// Store records a successful result under key.
func (c *ResultCache) Store(key string, u *Unit, report *UnitReport) error {
	encoded, err := msgpack.Marshal(&cachedUnit{Unit: EncodeUnit(u), Report: report})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	} else if err = c.store.SaveState(key, encoded); err != nil {
		return err
	}
	c.hot.Set(key, S2Compress(nil, encoded), int64(len(encoded)))
	return nil
}

// Instrument returns the cached result for the unit, or instruments it and caches the outcome. Concurrent calls for
// the same unit are serialized so the work happens once.
func (c *ResultCache) Instrument(ctx context.Context, in *Instrumenter, u *Unit) (*Unit, *UnitReport, error) {
	key, err := UnitFingerprint(u, in.env.cfg)
	if err != nil {
		return nil, nil, err
	}
	lock := c.locks.Lock(key)
	defer lock.Unlock()

	if cached, report, ok, err := c.Lookup(key); err != nil {
		c.log.Warn("ignoring unreadable cache entry", zap.String("unit", u.Name), zap.Error(err))
	} else if ok {
		c.log.Debug("cache hit", zap.String("unit", u.Name))
		return cached, report, nil
	}

	report, err := in.InstrumentUnit(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	report.Fingerprint = key
	if err := c.Store(key, u, report); err != nil {
		c.log.Warn("failed to cache unit", zap.String("unit", u.Name), zap.Error(err))
	}
	return u, report, nil
}

// Close waits for pending in-memory writes, then closes the cache and the backing storage.
func (c *ResultCache) Close() error {
	c.hot.Wait()
	c.hot.Close()
	return c.store.Close()
}
