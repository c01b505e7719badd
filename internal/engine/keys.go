package engine

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/proof"
)

type keyPair struct {
	pk *proof.ProvingKey
	vk *proof.VerifyingKey
}

// keyCache shares key material between nodes whose circuits have the same
// digest. Concurrent requests for one digest generate keys once.
type keyCache struct {
	mu    sync.Mutex
	keys  map[ir.Digest]keyPair
	group singleflight.Group
}

func newKeyCache() *keyCache {
	return &keyCache{keys: make(map[ir.Digest]keyPair)}
}

// get returns cached keys for c or generates them. hit is true when the keys
// came from the cache or from a concurrent request for the same digest.
func (k *keyCache) get(b proof.Backend, c *proof.Circuit) (kp keyPair, hit bool, err error) {
	k.mu.Lock()
	cached, ok := k.keys[c.Digest]
	k.mu.Unlock()
	if ok {
		return cached, true, nil
	}

	v, err, shared := k.group.Do(string(c.Digest), func() (any, error) {
		k.mu.Lock()
		cached, ok := k.keys[c.Digest]
		k.mu.Unlock()
		if ok {
			return cached, nil
		}
		pk, vk, err := b.KeyGen(c)
		if err != nil {
			return nil, err
		}
		kp := keyPair{pk: pk, vk: vk}
		k.mu.Lock()
		k.keys[c.Digest] = kp
		k.mu.Unlock()
		return kp, nil
	})
	if err != nil {
		return keyPair{}, false, err
	}
	return v.(keyPair), shared, nil
}

func (k *keyCache) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.keys)
}

func (k *keyCache) reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys = make(map[ir.Digest]keyPair)
}
