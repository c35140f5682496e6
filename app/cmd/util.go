package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lexcodex/transmute/pattern"
	"github.com/lexcodex/transmute/persistence"
	"github.com/lexcodex/transmute/session"
	"github.com/lexcodex/transmute/telemetry"
	"github.com/lexcodex/transmute/validate"
)

// engineDeps bundles everything a command needs to run sessions, plus the
// cleanup that flushes learned patterns back to disk.
type engineDeps struct {
	engine *session.Engine
	store  *persistence.PatternStore
	tel    *telemetry.JSONFile
}

// buildEngine opens the workspace stores and assembles an engine over them.
func buildEngine() (*engineDeps, error) {
	if err := os.MkdirAll(filepath.Dir(globalCfg.PatternDBPath), 0o755); err != nil {
		return nil, err
	}
	store, err := persistence.NewPatternStore(globalCfg.PatternDBPath)
	if err != nil {
		return nil, fmt.Errorf("open pattern store: %w", err)
	}
	lib := pattern.NewLibrary()
	if err := store.LoadLibrary(lib); err != nil {
		store.Close()
		return nil, fmt.Errorf("load pattern library: %w", err)
	}
	tel, err := telemetry.NewJSONFile(globalCfg.TelemetryPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open telemetry log: %w", err)
	}
	engine := session.NewEngine(lib, nil, &validate.Structural{}, tel)
	return &engineDeps{engine: engine, store: store, tel: tel}, nil
}

// close persists the library and releases the stores.
func (d *engineDeps) close() error {
	syncErr := d.store.SyncLibrary(d.engine.Library())
	if err := d.store.Close(); syncErr == nil {
		syncErr = err
	}
	if err := d.tel.Close(); syncErr == nil {
		syncErr = err
	}
	return syncErr
}
