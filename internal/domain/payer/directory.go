package payer

import (
	"context"
	"fmt"
	"sync"
)

// Directory is the read-through lookup of known payers. Payer rows never
// change once created, so entries are cached for the process lifetime.
type Directory struct {
	repo Repository

	mu     sync.RWMutex
	byID   map[int64]*Payer
	byName map[PayerName]*Payer
}

func NewDirectory(repo Repository) *Directory {
	return &Directory{
		repo:   repo,
		byID:   make(map[int64]*Payer),
		byName: make(map[PayerName]*Payer),
	}
}

func (d *Directory) remember(p *Payer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[p.ID] = p
	if n, ok := p.Name(); ok {
		d.byName[n] = p
	}
}

// Get returns the payer with id, or ErrPayerNotFound.
func (d *Directory) Get(ctx context.Context, id int64) (*Payer, error) {
	d.mu.RLock()
	p, ok := d.byID[id]
	d.mu.RUnlock()
	if ok {
		return p, nil
	}
	p, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.remember(p)
	return p, nil
}

// ByName returns the payer registered under name.
func (d *Directory) ByName(ctx context.Context, name PayerName) (*Payer, error) {
	d.mu.RLock()
	p, ok := d.byName[name]
	d.mu.RUnlock()
	if ok {
		return p, nil
	}
	p, err := d.repo.GetByName(ctx, string(name))
	if err != nil {
		return nil, err
	}
	d.remember(p)
	return p, nil
}

func (d *Directory) ByCode(ctx context.Context, code string) (*Payer, error) {
	p, err := d.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	d.remember(p)
	return p, nil
}

// Lookup resolves a CLI or API argument: a known payer name first, then a
// payer code.
func (d *Directory) Lookup(ctx context.Context, nameOrCode string) (*Payer, error) {
	var p *Payer
	var err error
	if n, ok := ParsePayerName(nameOrCode); ok {
		p, err = d.ByName(ctx, n)
	} else {
		p, err = d.ByCode(ctx, nameOrCode)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup payer %q: %w", nameOrCode, err)
	}
	return p, nil
}

func (d *Directory) List(ctx context.Context) ([]*Payer, error) {
	return d.repo.List(ctx)
}
