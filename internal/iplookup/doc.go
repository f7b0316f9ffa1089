// Package iplookup wraps the third-party IP reputation/geolocation
// service. Responses are cached in a bounded LRU with a TTL so repeated
// dashboard lookups of the same address stay off the wire.
package iplookup
