package engine

import (
	"go.uber.org/zap"

	"xdao.co/in3/storage"
)

// Host is the adapter through which an engine reaches the client's storage
// capability during a call.
//
// Contract:
//   - a Host without storage behaves as an always-empty cache
//   - storage errors are logged and reported as a miss (reads) or ignored
//     (writes); persistence never fails a call
//   - the driver constructs the Host per call and never invokes it itself
type Host struct {
	store storage.Storage
	log   *zap.Logger
}

// NewHost wraps store. Both arguments may be nil.
func NewHost(store storage.Storage, log *zap.Logger) *Host {
	if log == nil {
		log = zap.NewNop()
	}
	return &Host{store: store, log: log}
}

// Logger returns the call-scoped logger.
func (h *Host) Logger() *zap.Logger {
	if h == nil || h.log == nil {
		return zap.NewNop()
	}
	return h.log
}

// HasStorage reports whether a storage capability is attached.
func (h *Host) HasStorage() bool { return h != nil && h.store != nil }

// CacheGet returns the value stored under key.
func (h *Host) CacheGet(key string) ([]byte, bool) {
	if !h.HasStorage() {
		return nil, false
	}
	b, err := h.store.Get(key)
	if err != nil {
		if !storage.IsNotFound(err) {
			h.log.Warn("storage get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return b, true
}

// CacheSet stores value under key.
func (h *Host) CacheSet(key string, value []byte) {
	if !h.HasStorage() {
		return
	}
	if err := h.store.Set(key, value); err != nil {
		h.log.Warn("storage set failed", zap.String("key", key), zap.Error(err))
	}
}

// CacheClear removes every stored value.
func (h *Host) CacheClear() {
	if !h.HasStorage() {
		return
	}
	if err := h.store.Clear(); err != nil {
		h.log.Warn("storage clear failed", zap.Error(err))
	}
}
