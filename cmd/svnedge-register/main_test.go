package main

import (
	"testing"

	"github.com/collabnet/svnedge-discovery/internal/config"
	"github.com/collabnet/svnedge-discovery/pkg/discovery"
	"github.com/stretchr/testify/assert"
)

func TestProperties(t *testing.T) {
	cfg := config.Register{ContextPath: "/csvn", TeamForgePath: "/integration", HTTPPath: "/app"}

	assert.Equal(t, map[discovery.ServiceKey]string{
		discovery.CSVNContextPath:   "/csvn",
		discovery.CSVNTeamForgePath: "/integration",
	}, properties(discovery.ServiceTypeCSVN, cfg))

	assert.Equal(t, map[discovery.ServiceKey]string{
		discovery.HTTPPath: "/app",
	}, properties(discovery.ServiceTypeHTTP, cfg))
}
