package params

import "time"

type Database struct {
	ConnectionString      string
	MaxOpenConnections    int32
	MaxIdleConnections    int32
	ConnectionMaxLifetime time.Duration
	// ConnectTimeout bounds the time spent retrying an unreachable server.
	ConnectTimeout time.Duration
}
