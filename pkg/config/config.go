package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/integrid/integrid/pkg/compute"
	"github.com/integrid/integrid/pkg/controller"
	"github.com/integrid/integrid/pkg/types"
)

// Default run parameters, matching the reference deployment.
const (
	DefaultBindAddr        = "127.0.0.1:20001"
	DefaultFormula         = "2 * x + 1 / sqrt(x + 1/16)"
	DefaultLowerBound      = 0.0
	DefaultHigherBound     = 2.0
	DefaultChunks          = 5
	DefaultReceiveTimeout  = 5 * time.Second
	DefaultNoJobBackoff    = 2 * time.Second
	DefaultLivenessPeriod  = 5 * time.Second
	DefaultWatchdogTimeout = controller.DefaultWatchdogTimeout
)

// Coordinator holds one run's coordinator-side configuration.
type Coordinator struct {
	BindAddr    string `yaml:"bind_addr"`
	MetricsAddr string `yaml:"metrics_addr"` // empty disables the endpoint

	LowerBound  float64 `yaml:"lower_bound"`
	HigherBound float64 `yaml:"higher_bound"`
	Chunks      int     `yaml:"chunks"`
	Formula     string  `yaml:"formula"`
	Method      string  `yaml:"method"`

	WatchdogTimeout time.Duration `yaml:"watchdog_timeout"`
}

// Worker holds a worker's configuration.
type Worker struct {
	CoordinatorAddr string `yaml:"coordinator_addr"`

	ReceiveTimeout time.Duration `yaml:"receive_timeout"`
	NoJobBackoff   time.Duration `yaml:"no_job_backoff"`
	LivenessPeriod time.Duration `yaml:"liveness_period"`
}

// DefaultCoordinator returns the reference coordinator configuration.
func DefaultCoordinator() Coordinator {
	return Coordinator{
		BindAddr:        DefaultBindAddr,
		LowerBound:      DefaultLowerBound,
		HigherBound:     DefaultHigherBound,
		Chunks:          DefaultChunks,
		Formula:         DefaultFormula,
		Method:          string(types.MethodSimpson),
		WatchdogTimeout: DefaultWatchdogTimeout,
	}
}

// DefaultWorker returns the reference worker configuration.
func DefaultWorker() Worker {
	return Worker{
		CoordinatorAddr: DefaultBindAddr,
		ReceiveTimeout:  DefaultReceiveTimeout,
		NoJobBackoff:    DefaultNoJobBackoff,
		LivenessPeriod:  DefaultLivenessPeriod,
	}
}

// LoadCoordinator reads a yaml file over the defaults.
func LoadCoordinator(path string) (Coordinator, error) {
	cfg := DefaultCoordinator()
	if err := loadYAML(path, &cfg); err != nil {
		return Coordinator{}, err
	}
	return cfg, nil
}

// LoadWorker reads a yaml file over the defaults.
func LoadWorker(path string) (Worker, error) {
	cfg := DefaultWorker()
	if err := loadYAML(path, &cfg); err != nil {
		return Worker{}, err
	}
	return cfg, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Validate checks every configuration-fault condition before a run starts:
// address shape, bounds ordering, chunk count, method name, and that the
// formula both compiles and evaluates at a probe point inside the interval.
func (c Coordinator) Validate() error {
	if err := validateUDPAddr(c.BindAddr); err != nil {
		return fmt.Errorf("bind_addr: %w", err)
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return fmt.Errorf("metrics_addr: %w", err)
		}
	}
	if c.LowerBound >= c.HigherBound {
		return fmt.Errorf("%w: [%g, %g)", controller.ErrInvalidBounds, c.LowerBound, c.HigherBound)
	}
	if c.Chunks < 1 {
		return fmt.Errorf("%w: %d", controller.ErrInvalidChunkCount, c.Chunks)
	}
	if !types.Method(c.Method).Valid() {
		return fmt.Errorf("unknown integration method %q", c.Method)
	}
	if c.WatchdogTimeout < 0 {
		return fmt.Errorf("watchdog_timeout must not be negative")
	}

	// Probe at the interval midpoint: a formula that cannot be evaluated
	// inside the run's own domain would only abort the run later.
	probe := c.LowerBound + (c.HigherBound-c.LowerBound)/2
	if err := compute.Probe(c.Formula, probe); err != nil {
		return fmt.Errorf("formula: %w", err)
	}
	return nil
}

// Validate checks the worker-side configuration-fault conditions.
func (w Worker) Validate() error {
	if err := validateUDPAddr(w.CoordinatorAddr); err != nil {
		return fmt.Errorf("coordinator_addr: %w", err)
	}
	if w.ReceiveTimeout <= 0 {
		return fmt.Errorf("receive_timeout must be positive")
	}
	if w.NoJobBackoff <= 0 {
		return fmt.Errorf("no_job_backoff must be positive")
	}
	if w.LivenessPeriod <= 0 {
		return fmt.Errorf("liveness_period must be positive")
	}
	return nil
}

func validateUDPAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if host == "" {
		return fmt.Errorf("missing host in %q", addr)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}

// ControllerConfig translates the run parameters into a controller config.
func (c Coordinator) ControllerConfig() controller.Config {
	return controller.Config{
		LowerBound:      c.LowerBound,
		HigherBound:     c.HigherBound,
		ChunkCount:      c.Chunks,
		Formula:         c.Formula,
		Method:          types.Method(c.Method),
		WatchdogTimeout: c.WatchdogTimeout,
	}
}
