package provisionerdrv

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kompox/sandboxops/domain/model"
)

// Settings keys understood by drivers.
const (
	SettingBinary = "binary" // path or name of the executable
)

// driverFactory is a constructor function for a provisioner driver.
type driverFactory func(settings map[string]string) (model.ProvisionerPort, error)

var (
	mu       sync.RWMutex
	registry = map[string]driverFactory{}
)

// Register makes a driver available by the given name. Drivers should call
// this from their init() function.
func Register(name string, factory driverFactory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = factory
}

// GetDriverFactory returns the driver factory function for the given name.
func GetDriverFactory(name string) (driverFactory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	factory, exists := registry[name]
	return factory, exists
}

// New builds the named driver.
func New(name string, settings map[string]string) (model.ProvisionerPort, error) {
	factory, ok := GetDriverFactory(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", model.ErrProvisionerNotFound, name, Names())
	}
	return factory(settings)
}

// Names returns registered driver names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
