// Package index maps catalog products to the users whose carts reference
// them. The mapping is a fan-out hint: it may hold members whose carts have
// expired and may briefly miss a member after a crash mid-update. Callers
// must re-check the cart itself before acting on a member.
package index

import "context"

// ProductIndex is plain set bookkeeping with no coupling to cart commits.
// AddMember and RemoveMember are idempotent.
type ProductIndex interface {
	AddMember(ctx context.Context, productID, userID string) error
	RemoveMember(ctx context.Context, productID, userID string) error
	MembersOf(ctx context.Context, productID string) ([]string, error)
}
