package cache

import (
	"net/url"
	"strconv"
)

const (
	CollectionStores      = "stores"
	CollectionAuditEvents = "audit-events"
)

// Query identifies one cached collection view: the collection plus the
// parameters it was fetched with.
type Query struct {
	Collection string
	Params     url.Values
}

func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

func (q Query) With(key, value string) Query {
	params := url.Values{}
	for k, v := range q.Params {
		params[k] = append([]string(nil), v...)
	}
	params.Set(key, value)
	return Query{Collection: q.Collection, Params: params}
}

// Key is stable for equal queries, e.g. "audit-events?limit=20".
func (q Query) Key() string {
	if len(q.Params) == 0 {
		return q.Collection
	}
	return q.Collection + "?" + q.Params.Encode()
}

func (q Query) String() string {
	return q.Key()
}

func StoresQuery() Query {
	return NewQuery(CollectionStores)
}

func AuditQuery(limit int) Query {
	return NewQuery(CollectionAuditEvents).With("limit", strconv.Itoa(limit))
}
