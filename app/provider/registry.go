package provider

import (
	"errors"

	"github.com/wali-delivery/ms-go-payments/app/types"
)

var ErrProviderNotSupported = errors.New("provider is not supported")

// Registry resolves adapters by provider code. Adding a provider means
// registering one more adapter here; the orchestrator never changes.
type Registry struct {
	adapters map[types.Provider]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	items := make(map[types.Provider]Adapter, len(adapters))
	for _, a := range adapters {
		items[a.Code()] = a
	}
	return &Registry{adapters: items}
}

func (r *Registry) Get(code types.Provider) (Adapter, error) {
	adapter, ok := r.adapters[code]
	if !ok {
		return nil, ErrProviderNotSupported
	}
	return adapter, nil
}
