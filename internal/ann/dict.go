package ann

import (
	"sort"

	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/matrix"
)

// WeightsDict maps weights names to Connections blocks. Components that
// register the same name share the block.
type WeightsDict map[string]*Connections

// GetOrCreate returns the block registered under name, creating a zeroed
// [output, input] block when absent. An existing block of another size is a
// fatal shape mismatch. The returned block's sharer count is incremented.
func (d WeightsDict) GetOrCreate(name string, input, output int, opts ...matrix.Option) *Connections {
	c, ok := d[name]
	if ok {
		if !c.CheckInputOutputSizes(input, output) {
			fatal.Raise("ann.WeightsDict", fatal.ErrShapeMismatch,
				"weights %q are %dx%d, requested %dx%d", name, c.OutputSize(), c.InputSize(), output, input)
		}
	} else {
		c = NewConnections(input, output, nil, nil, opts...)
		d[name] = c
	}
	c.IncShared()
	return c
}

// Names returns the registered names in sorted order.
func (d WeightsDict) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone deep-copies every block.
func (d WeightsDict) Clone() WeightsDict {
	out := make(WeightsDict, len(d))
	for name, c := range d {
		out[name] = c.Clone()
	}
	return out
}

// ComponentsDict maps component names to components.
type ComponentsDict map[string]Component

// Get returns the component registered under name, or nil.
func (d ComponentsDict) Get(name string) Component { return d[name] }
