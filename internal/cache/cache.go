package cache

import (
	"context"
	"strings"
	"time"
)

// Store is a namespaced, TTL'd key-value cache.
//
// Keys follow {namespace}:{tenant}:{...discriminators}. Tenant invalidation
// removes every key under the tenant's known namespace prefixes and MUST run
// before any background work that could repopulate the cache with stale data.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	InvalidateTenant(ctx context.Context, tenantID string) error
}

// Namespace identifies a cache keyspace with its own default TTL.
type Namespace string

const (
	NamespaceCallList    Namespace = "calls:list"
	NamespaceCallDetail  Namespace = "calls:detail"
	NamespaceActiveCalls Namespace = "calls:active"
	NamespaceDashboard   Namespace = "dashboard"
	NamespaceEnrichment  Namespace = "enrichment"
	NamespaceAddon       Namespace = "addon"
)

// allNamespaces is the invalidation surface for a tenant. New namespaces must
// be added here or InvalidateTenant will miss them.
var allNamespaces = []Namespace{
	NamespaceCallList,
	NamespaceCallDetail,
	NamespaceActiveCalls,
	NamespaceDashboard,
	NamespaceEnrichment,
	NamespaceAddon,
}

// TTL returns the namespace default TTL. Mutable list/dashboard views stay
// short; enrichment and addon payloads are effectively immutable once written.
func (n Namespace) TTL() time.Duration {
	switch n {
	case NamespaceCallList, NamespaceDashboard:
		return 60 * time.Second
	case NamespaceActiveCalls:
		return 30 * time.Second
	case NamespaceCallDetail:
		return 5 * time.Minute
	case NamespaceEnrichment, NamespaceAddon:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// Key builds a cache key for a tenant plus optional discriminators
// (page numbers, call ids, addon names).
func Key(ns Namespace, tenantID string, parts ...string) string {
	elems := append([]string{string(ns), tenantID}, parts...)
	return strings.Join(elems, ":")
}

func tenantPrefix(ns Namespace, tenantID string) string {
	return string(ns) + ":" + tenantID + ":"
}
