package model

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/yndnr/trainmesh-go/internal/config"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/device"
)

// Layout names the axis order of the input buffer.
type Layout string

const (
	// LayoutC01B is channels, rows, columns, batch.
	LayoutC01B Layout = "c01b"
	// LayoutBC01 is batch, channels, rows, columns.
	LayoutBC01 Layout = "bc01"
)

// Spec describes what a model needs from the coordination layer.
type Spec struct {
	Name string
	// Input is the per-sample shape (channels, rows, columns).
	Input  []int
	Layout Layout
}

// Shape returns the input buffer shape for batch samples.
func (s Spec) Shape(batch int, input []int) []int {
	if len(input) == 0 {
		input = s.Input
	}
	switch s.Layout {
	case LayoutBC01:
		return append([]int{batch}, input...)
	default:
		return append(append([]int(nil), input...), batch)
	}
}

// Model is a built network.
type Model interface {
	Name() string
	// SharedX is the input buffer the loader writes batches into.
	SharedX() *device.Buffer
	// Compile prepares the train and validation functions.
	Compile(cfg *config.TrainConfig) error
	Compiled() bool
	Close() error
}

// Builder builds a model from the merged configuration.
type Builder interface {
	Build(cfg *config.TrainConfig) (Model, error)
}

// Catalog is the Builder for the known model names.
type Catalog struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// NewCatalog returns a catalog holding alexnet and googlenet.
func NewCatalog() *Catalog {
	c := &Catalog{specs: make(map[string]Spec)}
	c.Register(Spec{Name: "alexnet", Input: []int{3, 227, 227}, Layout: LayoutC01B})
	c.Register(Spec{Name: "googlenet", Input: []int{3, 224, 224}, Layout: LayoutBC01})
	return c
}

// Register adds or replaces a model spec.
func (c *Catalog) Register(s Spec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.specs[strings.ToLower(s.Name)] = s
}

// Names lists the registered models.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.specs))
	for n := range c.specs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the spec for name.
func (c *Catalog) Lookup(name string) (Spec, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.specs[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Spec{}, domain.ErrUnsupportedModel.Detailf("%q", name)
	}
	return s, nil
}

// Build allocates the model's input buffer in cfg.Loader.ShmDir.
func (c *Catalog) Build(cfg *config.TrainConfig) (Model, error) {
	spec, err := c.Lookup(cfg.Name)
	if err != nil {
		return nil, err
	}
	dtype, err := domain.ParseDType(cfg.DType)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		return nil, domain.ErrInvalidConfig.WithDetails("batch_size must be positive")
	}
	if len(cfg.InputShape) != 0 && len(cfg.InputShape) != 3 {
		return nil, domain.ErrInvalidConfig.Detailf("input_shape %v, want channels,rows,columns", cfg.InputShape)
	}

	x, err := device.Alloc(cfg.Loader.ShmDir, spec.Shape(cfg.BatchSize, cfg.InputShape), dtype)
	if err != nil {
		return nil, fmt.Errorf("allocate shared_x for %s: %w", spec.Name, err)
	}
	return &network{spec: spec, batch: cfg.BatchSize, x: x}, nil
}

type network struct {
	spec  Spec
	batch int
	x     *device.Buffer

	compiled bool
}

func (n *network) Name() string            { return n.spec.Name }
func (n *network) SharedX() *device.Buffer { return n.x }
func (n *network) Compiled() bool          { return n.compiled }

func (n *network) Compile(cfg *config.TrainConfig) error {
	if cfg.BatchSize != n.batch {
		return domain.ErrInvalidConfig.Detailf("compile with batch_size %d, built with %d", cfg.BatchSize, n.batch)
	}
	n.compiled = true
	return nil
}

func (n *network) Close() error {
	return n.x.Close()
}
