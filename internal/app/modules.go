package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/a-marczewski/petmem/internal/bridge"
	"github.com/a-marczewski/petmem/internal/config"
	"github.com/a-marczewski/petmem/internal/memory"
	"github.com/a-marczewski/petmem/internal/snapshot"
)

// CoreModule holds the core application components
type CoreModule struct {
	Config *config.Config
	Logger *zap.Logger
}

// App wires the memory store to its supporting services
type App struct {
	Core      CoreModule
	Store     *memory.Store
	Bridge    *bridge.Bridge
	Runner    *memory.Runner
	Snapshots *snapshot.DB        // nil when persistence is disabled
	Scheduler *snapshot.Scheduler // nil when persistence is disabled
	Ctx       context.Context
	Cancel    context.CancelFunc
}
