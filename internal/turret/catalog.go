// Package turret turns vehicle turret definitions into TURRET camera records.
package turret

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/OCAP2/cctv/pkg/core"
)

// TurretSlot is one turret of a vehicle class.
type TurretSlot struct {
	Path core.TurretPath `json:"path"`
	Role string          `json:"role"`
}

// VehicleDefinition is the turret layout of a vehicle class as reported by the game.
type VehicleDefinition struct {
	ClassName   string       `json:"className"`
	DisplayName string       `json:"displayName"`
	Turrets     []TurretSlot `json:"turrets"`
}

// Catalog caches vehicle definitions by class name, case-insensitively.
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]VehicleDefinition
}

func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]VehicleDefinition)}
}

func classKey(class string) string {
	return strings.ToLower(strings.TrimSpace(class))
}

// Define stores or replaces the definition of a class.
func (c *Catalog) Define(def VehicleDefinition) error {
	key := classKey(def.ClassName)
	if key == "" {
		return errors.New("vehicle definition without class name")
	}
	slots := make([]TurretSlot, len(def.Turrets))
	for i, s := range def.Turrets {
		slots[i] = TurretSlot{Path: append(core.TurretPath(nil), s.Path...), Role: s.Role}
	}
	def.Turrets = slots

	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs[key] = def
	return nil
}

// Lookup returns the definition of class.
func (c *Catalog) Lookup(class string) (VehicleDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[classKey(class)]
	if !ok {
		return VehicleDefinition{}, fmt.Errorf("vehicle class %q: %w", class, core.ErrUnknownVehicle)
	}
	return def, nil
}

// Has reports whether class has a definition.
func (c *Catalog) Has(class string) bool {
	_, err := c.Lookup(class)
	return err == nil
}

// Classes returns the defined class names in sorted order.
func (c *Catalog) Classes() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.defs))
	for _, d := range c.defs {
		out = append(out, d.ClassName)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}
