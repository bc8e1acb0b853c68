// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// RunConfig is the demo CLI's run configuration (§2.1, §6 "run
// --config path.toml"), expressed as TOML the way the pack's config-file
// convention (lookbusy1344-arm_emulator) does.
type RunConfig struct {
	Image        string `toml:"image"`
	LoadSegment  uint16 `toml:"load_segment"`
	CycleBudget  int64  `toml:"cycle_budget"`
	MemorySize   int    `toml:"memory_size"`
	EntryOffset  uint16 `toml:"entry_offset"`
	EnablePerf   bool   `toml:"enable_perf"`
	DefaultIVT   uint32 `toml:"default_ivt_handler"`
}

// DefaultRunConfig mirrors the teacher's convention of sane runner
// defaults (cpu_x86_runner.go's defaultX86LoadAddr) rather than requiring
// every field spelled out in every config file.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		LoadSegment: 0x1000,
		CycleBudget: 0,
		MemorySize:  0x100000, // 1MB real-mode address space
		EnablePerf:  false,
		DefaultIVT:  0,
	}
}

// LoadRunConfig reads and decodes a TOML run-configuration file, filling
// unset fields from DefaultRunConfig.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return RunConfig{}, fmt.Errorf("decoding config %s: %w", path, err)
	}
	if cfg.Image == "" {
		return RunConfig{}, fmt.Errorf("config %s: image path is required", path)
	}
	return cfg, nil
}
