package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/utils/cpuset"

	"github.com/AMDEPYC/cpufreq-spsa/internal/freqtable"
	"github.com/AMDEPYC/cpufreq-spsa/internal/metrics"
	"github.com/AMDEPYC/cpufreq-spsa/internal/scaling"
	"github.com/AMDEPYC/cpufreq-spsa/internal/spsa"
)

const DefaultSamplePeriod = 50 * time.Millisecond

type Config struct {
	Tunables     Tunables        `yaml:"tunables"`
	SamplePeriod time.Duration   `yaml:"samplePeriod"`
	ProcfsPath   string          `yaml:"procfsPath"`
	SysfsCPUPath string          `yaml:"sysfsCPUPath"`
	Clusters     []ClusterConfig `yaml:"clusters"`
}

type Tunables struct {
	Alpha       int  `yaml:"alpha"`
	Beta        int  `yaml:"beta"`
	TargetLoad  uint `yaml:"targetLoad"`
	Diagnostics bool `yaml:"diagnostics"`
}

// ClusterConfig binds a frequency domain to its CPUs. CPUs uses the Linux
// cpuset list format, e.g. "0-3" or "4,6-7".
type ClusterConfig struct {
	ID    int          `yaml:"id"`
	CPUs  string       `yaml:"cpus"`
	Table *TableConfig `yaml:"table,omitempty"`
}

type TableConfig struct {
	Frequencies []uint `yaml:"frequencies"`
	Costs       []uint `yaml:"costs"`
}

// Default describes a 4+4 big.LITTLE SoC using the built-in tables.
func Default() *Config {
	params := spsa.DefaultParams()
	return &Config{
		Tunables: Tunables{
			Alpha:      params.Alpha,
			Beta:       params.Beta,
			TargetLoad: params.TargetLoad,
		},
		SamplePeriod: DefaultSamplePeriod,
		ProcfsPath:   metrics.DefaultProcfsPath,
		SysfsCPUPath: metrics.DefaultSysfsPath,
		Clusters: []ClusterConfig{
			{ID: 0, CPUs: "0-3"},
			{ID: 1, CPUs: "4-7"},
		},
	}
}

// Load reads and validates a YAML config file. Keys missing from the file
// keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.SamplePeriod <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSamplePeriod, c.SamplePeriod)
	}
	if len(c.Clusters) == 0 {
		return ErrNoClusters
	}

	ids := make([]int, 0, len(c.Clusters))
	assigned := cpuset.New()
	for _, cluster := range c.Clusters {
		ids = append(ids, cluster.ID)

		cpus, err := cpuset.Parse(cluster.CPUs)
		if err != nil {
			return fmt.Errorf("%w: cluster %d: %w", ErrInvalidCPUs, cluster.ID, err)
		}
		if cpus.IsEmpty() {
			return fmt.Errorf("%w: cluster %d has no cpus", ErrInvalidCPUs, cluster.ID)
		}
		if shared := assigned.Intersection(cpus); !shared.IsEmpty() {
			return fmt.Errorf("%w: %s", ErrOverlappingCPUs, shared.String())
		}
		assigned = assigned.Union(cpus)

		if _, err := cluster.table(); err != nil {
			return fmt.Errorf("cluster %d: %w", cluster.ID, err)
		}
	}

	slices.Sort(ids)
	for i, id := range ids {
		if id != i {
			return fmt.Errorf("%w: got %v", ErrInvalidClusterID, ids)
		}
	}

	return nil
}

func (c *Config) Params() spsa.Params {
	return spsa.Params{
		Alpha:      c.Tunables.Alpha,
		Beta:       c.Tunables.Beta,
		TargetLoad: c.Tunables.TargetLoad,
	}
}

// Apply pushes the tunables into the running governor. Nothing is changed
// when any value is invalid.
func (c *Config) Apply(tunables *spsa.Tunables) error {
	if err := tunables.SetParams(c.Params()); err != nil {
		return err
	}
	tunables.SetDiagnostics(c.Tunables.Diagnostics)
	return nil
}

// Tables returns the frequency table of every cluster, indexed by cluster id.
func (c *Config) Tables() ([]*freqtable.Table, error) {
	tables := make([]*freqtable.Table, len(c.Clusters))
	for _, cluster := range c.Clusters {
		if cluster.ID < 0 || cluster.ID >= len(tables) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidClusterID, cluster.ID)
		}
		table, err := cluster.table()
		if err != nil {
			return nil, fmt.Errorf("cluster %d: %w", cluster.ID, err)
		}
		tables[cluster.ID] = table
	}
	return tables, nil
}

// ScalingOpts returns one worker configuration per cluster.
func (c *Config) ScalingOpts() ([]scaling.ClusterScalingOpts, error) {
	opts := make([]scaling.ClusterScalingOpts, 0, len(c.Clusters))
	for _, cluster := range c.Clusters {
		cpus, err := cpuset.Parse(cluster.CPUs)
		if err != nil {
			return nil, fmt.Errorf("%w: cluster %d: %w", ErrInvalidCPUs, cluster.ID, err)
		}
		opts = append(opts, scaling.ClusterScalingOpts{
			ClusterID:    cluster.ID,
			CPUs:         cpus.List(),
			SamplePeriod: c.SamplePeriod,
		})
	}
	return opts, nil
}

func (cc ClusterConfig) table() (*freqtable.Table, error) {
	if cc.Table != nil {
		return freqtable.New(cc.Table.Frequencies, cc.Table.Costs)
	}
	builtin := freqtable.Builtin()
	if cc.ID < 0 || cc.ID >= len(builtin) {
		return nil, fmt.Errorf("%w: %d", ErrMissingTable, cc.ID)
	}
	return builtin[cc.ID], nil
}
