package driver

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"ember/internal/device"
)

// cachedResponse is a remembered response for a specific nonce
type cachedResponse struct {
	Response  *device.ActionResponse
	Timestamp time.Time
}

// NonceCache deduplicates device actions per device. Clients attach a nonce
// to mutating requests; a retransmitted request with a known nonce is
// answered from cache instead of being executed again.
type NonceCache struct {
	deviceCaches map[string]*lru.Cache[string, *cachedResponse]
	mutex        sync.RWMutex
	maxSize      int
	expiration   time.Duration
}

// NewNonceCache creates a new nonce cache
func NewNonceCache(maxSize int, expiration time.Duration) *NonceCache {
	if maxSize <= 0 {
		maxSize = 50
	}
	if expiration <= 0 {
		expiration = time.Hour
	}

	return &NonceCache{
		deviceCaches: make(map[string]*lru.Cache[string, *cachedResponse]),
		maxSize:      maxSize,
		expiration:   expiration,
	}
}

// GenerateNonce generates a unique nonce with timestamp and random component
func GenerateNonce() string {
	timestamp := time.Now().UnixMilli()

	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		// Fallback if crypto/rand fails
		randomBytes = []byte{
			byte(timestamp >> 24),
			byte(timestamp >> 16),
			byte(timestamp >> 8),
			byte(timestamp),
		}
	}

	// Format: timestamp_ms-random_hex
	return fmt.Sprintf("%d-%x", timestamp, randomBytes)
}

// ValidateNonce validates the timestamp-hex nonce format
func ValidateNonce(nonce string) bool {
	dashIndex := strings.Index(nonce, "-")
	if dashIndex <= 0 || strings.Count(nonce, "-") != 1 {
		return false
	}

	timestampPart := nonce[:dashIndex]
	if len(timestampPart) < 13 { // unix millis are 13+ digits
		return false
	}
	for _, c := range timestampPart {
		if c < '0' || c > '9' {
			return false
		}
	}

	randomPart := nonce[dashIndex+1:]
	if len(randomPart) != 8 {
		return false
	}
	for _, c := range randomPart {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}

	return true
}

func (nc *NonceCache) getDeviceCache(deviceID string) *lru.Cache[string, *cachedResponse] {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()

	cache, exists := nc.deviceCaches[deviceID]
	if !exists {
		cache, _ = lru.New[string, *cachedResponse](nc.maxSize)
		nc.deviceCaches[deviceID] = cache
	}

	return cache
}

// Check returns a cached response for a nonce if one exists and is fresh
func (nc *NonceCache) Check(deviceID, nonce string) (*device.ActionResponse, bool) {
	if nonce == "" {
		return nil, false
	}

	cache := nc.getDeviceCache(deviceID)

	cached, found := cache.Get(nonce)
	if !found {
		return nil, false
	}

	if time.Since(cached.Timestamp) > nc.expiration {
		cache.Remove(nonce)
		return nil, false
	}

	return cached.Response, true
}

// Store remembers a response for a nonce
func (nc *NonceCache) Store(deviceID, nonce string, response *device.ActionResponse) {
	if nonce == "" {
		return
	}

	cache := nc.getDeviceCache(deviceID)
	cache.Add(nonce, &cachedResponse{
		Response:  response,
		Timestamp: time.Now(),
	})
}

// ClearDevice drops all cached nonces for a device
func (nc *NonceCache) ClearDevice(deviceID string) {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()

	if cache, exists := nc.deviceCaches[deviceID]; exists {
		cache.Purge()
		delete(nc.deviceCaches, deviceID)
	}
}

// Stats returns cache statistics for the status endpoint
func (nc *NonceCache) Stats() map[string]interface{} {
	nc.mutex.RLock()
	defer nc.mutex.RUnlock()

	totalNonces := 0
	deviceStats := make(map[string]int)
	for deviceID, cache := range nc.deviceCaches {
		count := cache.Len()
		totalNonces += count
		deviceStats[deviceID] = count
	}

	return map[string]interface{}{
		"total_devices": len(nc.deviceCaches),
		"total_nonces":  totalNonces,
		"max_size":      nc.maxSize,
		"expiration":    nc.expiration.String(),
		"device_stats":  deviceStats,
	}
}
