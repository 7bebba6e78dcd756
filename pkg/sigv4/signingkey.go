package sigv4

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/s3gw-project/s3gw/pkg/checksum"
)

// signingKeyCacheSize bounds the number of distinct (secret-derived)
// scopes kept warm; one entry per access key per day per region/service
// actually in use, so a few hundred entries comfortably covers a busy
// multi-tenant deployment.
const signingKeyCacheSize = 4096

// KeyCache memoizes derived signing keys by scope string
// ("date/region/service", prefixed internally by the secret's identity)
// so that repeated requests from the same credential within the same UTC
// day don't each pay the four-round HMAC derivation (spec §3 "Signing
// key"). Safe for concurrent use.
type KeyCache struct {
	cache *lru.Cache[string, []byte]
}

// NewKeyCache builds a cache. A zero-value *KeyCache (nil) is also valid
// and simply disables caching.
func NewKeyCache() *KeyCache {
	c, err := lru.New[string, []byte](signingKeyCacheSize)
	if err != nil {
		// lru.New only errors on a non-positive size, which never
		// happens here; fall back to no caching rather than panic.
		return &KeyCache{}
	}
	return &KeyCache{cache: c}
}

// DeriveSigningKey computes HMAC(HMAC(HMAC(HMAC("AWS4"+secret, date),
// region), service), "aws4_request"), consulting/populating kc if
// non-nil.
func DeriveSigningKey(kc *KeyCache, secretAccessKey, date, region, service string) []byte {
	cacheKey := secretAccessKey + "/" + date + "/" + region + "/" + service
	if kc != nil && kc.cache != nil {
		if v, ok := kc.cache.Get(cacheKey); ok {
			return v
		}
	}

	dateKey := checksum.HMACSHA256([]byte("AWS4"+secretAccessKey), []byte(date))
	dateRegionKey := checksum.HMACSHA256(dateKey, []byte(region))
	dateRegionServiceKey := checksum.HMACSHA256(dateRegionKey, []byte(service))
	signingKey := checksum.HMACSHA256(dateRegionServiceKey, []byte("aws4_request"))

	if kc != nil && kc.cache != nil {
		kc.cache.Add(cacheKey, signingKey)
	}
	return signingKey
}
