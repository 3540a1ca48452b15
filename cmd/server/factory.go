package main

import (
	"fmt"

	"github.com/lychee-technology/erpgate"
	"github.com/lychee-technology/erpgate/internal"
	"github.com/lychee-technology/erpgate/internal/rpcclient"
)

// NewGateway wires the XML-RPC backend client and the dispatcher described
// by config.
func NewGateway(config *erpgate.Config) (*internal.Dispatcher, *rpcclient.Client, error) {
	if err := config.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client, err := rpcclient.NewFromConfig(config.Backend)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	dispatcher := internal.NewDispatcher(client, config.Server.BaseURL, internal.HandlerOptions{
		CacheTTL:     config.Cache.TTL,
		MaxSessions:  config.Cache.MaxSessionsPerModel,
		Realm:        config.Server.Realm,
		MaxBodyBytes: config.Server.MaxBodyBytes,
	})
	return dispatcher, client, nil
}
