// Package portcache persists the last successful port enumeration to disk
// as CBOR, so internal/discovery can seed descriptions/manufacturers the OS
// omits on a later call (e.g. after a USB device is unplugged but its tty
// node briefly lingers). It is grounded on the teacher's own use of
// fxamacker/cbor for its wire encoding (pkg/service/helpers.go's
// writeUARTMessage/readUARTMessage); here the same library serializes a
// small on-disk record instead of a USOCK frame.
package portcache

import (
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/glitchi/gcp-host/internal/discovery"
)

// record is the on-disk shape. Field names are kept short and stable since
// this is a cache, not a protocol: a decode failure just means an empty
// cache, never a hard error for a caller.
type record struct {
	Ports []discovery.PortInfo `cbor:"ports"`
}

// Cache is a file-backed store of the last known port list.
type Cache struct {
	path string
}

// New returns a Cache backed by path. The file is created on first Save;
// Load on a missing file returns an empty, non-error result.
func New(path string) *Cache {
	return &Cache{path: path}
}

// Load returns the last saved port list keyed by port name. Any error
// reading or decoding the cache file is treated as "no hints available"
// rather than surfaced, since the cache is purely an enrichment source.
func (c *Cache) Load() map[string]discovery.PortInfo {
	hints := make(map[string]discovery.PortInfo)
	data, err := os.ReadFile(c.path)
	if err != nil {
		return hints
	}
	var rec record
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return hints
	}
	for _, p := range rec.Ports {
		hints[p.PortName] = p
	}
	return hints
}

// Save overwrites the cache file with ports.
func (c *Cache) Save(ports []discovery.PortInfo) error {
	data, err := cbor.Marshal(record{Ports: ports})
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o644)
}
