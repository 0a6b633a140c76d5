package hw

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// MaxUnits is the largest number of execution units a topology may expose.
const MaxUnits = 8

var (
	ErrNoUnits       = errors.New("topology has no execution units")
	ErrTooManyUnits  = fmt.Errorf("topology has more than %d execution units", MaxUnits)
	errEmptyClusters = errors.New("no clusters configured")
)

// Cluster is a group of units sharing one L2 cache.
type Cluster struct {
	ID    string
	Units []Unit
}

// Topology is the discovered set of clusters.
type Topology struct {
	Clusters []Cluster
}

// Units flattens the topology cluster by cluster, preserving each cluster's
// unit order. The result is the stable slot order used by the scheduler.
func (t Topology) Units() []Unit {
	var units []Unit
	for _, c := range t.Clusters {
		units = append(units, c.Units...)
	}
	return units
}

// Validate checks the unit count bounds.
func (t Topology) Validate() error {
	n := len(t.Units())
	if n == 0 {
		return ErrNoUnits
	}
	if n > MaxUnits {
		return fmt.Errorf("%w: %d", ErrTooManyUnits, n)
	}
	return nil
}

// ClusterSpec describes one simulated cluster.
type ClusterSpec struct {
	Units       int           `yaml:"units"`
	Version     uint32        `yaml:"version"`
	Duration    time.Duration `yaml:"sub_job_duration"`
	FailureRate float64       `yaml:"failure_rate"`
}

// BuildSimTopology creates simulated units for each cluster spec. Unit ids
// are "c<cluster>-pp<index>".
func BuildSimTopology(specs []ClusterSpec, logger *slog.Logger) (Topology, error) {
	if len(specs) == 0 {
		return Topology{}, errEmptyClusters
	}
	var t Topology
	for ci, spec := range specs {
		if spec.FailureRate < 0 || spec.FailureRate > 1 {
			return Topology{}, fmt.Errorf("cluster %d: failure_rate %v outside [0,1]", ci, spec.FailureRate)
		}
		c := Cluster{ID: fmt.Sprintf("c%d", ci)}
		for ui := 0; ui < spec.Units; ui++ {
			c.Units = append(c.Units, NewSimUnit(fmt.Sprintf("c%d-pp%d", ci, ui), SimConfig{
				Version:     spec.Version,
				Duration:    spec.Duration,
				FailureRate: spec.FailureRate,
			}, logger))
		}
		t.Clusters = append(t.Clusters, c)
	}
	if err := t.Validate(); err != nil {
		return Topology{}, err
	}
	return t, nil
}
