package config

import "time"

// Realtime channel settings
const (
	ChannelDialTimeout   = 10 * time.Second
	ChannelWriteTimeout  = 10 * time.Second
	ChannelReadLimit     = 64 * 1024
	ChannelPongWait      = 60 * time.Second
	ChannelPingInterval  = 25 * time.Second
	ChannelEventBuffer   = 16
)

// Devserver HTTP timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Devserver pairing simulation
const (
	SimQRRefreshCount = 3
	SSEHeartbeat      = 30 * time.Second
)
