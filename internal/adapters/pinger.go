// Package adapters fits data backends to the narrow interfaces the HTTP
// server depends on.
package adapters

import (
	"context"
	"fmt"

	"bilancio/internal/sheets"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// StorePinger answers readiness checks for any backend. Stores without a
// native Ping are probed with a taxonomy read.
type StorePinger struct {
	store sheets.TaxonomyReader
}

func NewStorePinger(store sheets.TaxonomyReader) *StorePinger {
	return &StorePinger{store: store}
}

func (p *StorePinger) Ping(ctx context.Context) error {
	if native, ok := p.store.(pinger); ok {
		return native.Ping(ctx)
	}
	if _, _, err := p.store.ListTaxonomy(ctx); err != nil {
		return fmt.Errorf("read taxonomy: %w", err)
	}
	return nil
}
