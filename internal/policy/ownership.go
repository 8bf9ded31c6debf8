// Package policy holds the row-level authorization rules of the application.
package policy

import (
	"context"

	"github.com/diewo77/invoicegen/gate"
)

// ResourceInvoice is the gate key for invoice checks.
const ResourceInvoice = "invoice"

// Ownable is implemented by models that belong to a single user.
type Ownable interface {
	GetUserID() uint
}

// OwnershipPolicy lets users act only on rows they own.
type OwnershipPolicy struct{}

func NewOwnershipPolicy() *OwnershipPolicy {
	return &OwnershipPolicy{}
}

// Can allows list/create (nil resource) for any signed-in user. Resources
// that do not implement Ownable are denied.
func (p *OwnershipPolicy) Can(_ context.Context, userID uint, _ gate.Action, resource any) bool {
	if resource == nil {
		return true
	}
	ownable, ok := resource.(Ownable)
	if !ok {
		return false
	}
	return ownable.GetUserID() == userID
}

// NewGate returns the application's gate with every policy registered.
func NewGate() *gate.Gate[uint] {
	g := gate.NewGate[uint]()
	g.Register(ResourceInvoice, NewOwnershipPolicy())
	return g
}
