package health

import "context"

// DBPinger checks relational store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// CachePinger checks cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}
