package custody

import (
	"bytes"
	"fmt"
	"sort"
)

// Role names a permission grouping checked before privileged operations.
type Role string

const (
	// RoleAdmin may grant and revoke role membership.
	RoleAdmin Role = "custody.admin"
	// RoleManager may recover balances and tune the per-transaction cap.
	RoleManager Role = "custody.manager"
)

var rolePrefix = []byte("custody/roles/")

type roleRecord struct {
	Members [][]byte
}

// AccessControlRegistry persists role membership. The deploying operator is
// seeded into both roles so the module is never born without an admin.
type AccessControlRegistry struct {
	store Storage
}

// NewAccessControlRegistry constructs the registry and grants the deployer
// both roles.
func NewAccessControlRegistry(store Storage, deployer [20]byte) (*AccessControlRegistry, error) {
	if store == nil {
		return nil, fmt.Errorf("custody: storage required")
	}
	if deployer == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	registry := &AccessControlRegistry{store: store}
	for _, role := range []Role{RoleAdmin, RoleManager} {
		if err := registry.addMember(role, deployer); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func roleKey(role Role) []byte {
	key := append([]byte(nil), rolePrefix...)
	return append(key, role...)
}

func (r *AccessControlRegistry) members(role Role) (roleRecord, error) {
	var record roleRecord
	if _, err := r.store.KVGet(roleKey(role), &record); err != nil {
		return roleRecord{}, fmt.Errorf("custody: load role %s: %w", role, err)
	}
	return record, nil
}

func (r *AccessControlRegistry) addMember(role Role, addr [20]byte) error {
	record, err := r.members(role)
	if err != nil {
		return err
	}
	for _, member := range record.Members {
		if bytes.Equal(member, addr[:]) {
			return nil
		}
	}
	record.Members = append(record.Members, append([]byte(nil), addr[:]...))
	sort.Slice(record.Members, func(i, j int) bool {
		return bytes.Compare(record.Members[i], record.Members[j]) < 0
	})
	if err := r.store.KVPut(roleKey(role), record); err != nil {
		return fmt.Errorf("custody: persist role %s: %w", role, err)
	}
	return nil
}

func (r *AccessControlRegistry) removeMember(role Role, addr [20]byte) error {
	record, err := r.members(role)
	if err != nil {
		return err
	}
	filtered := record.Members[:0]
	for _, member := range record.Members {
		if !bytes.Equal(member, addr[:]) {
			filtered = append(filtered, member)
		}
	}
	record.Members = filtered
	if err := r.store.KVPut(roleKey(role), record); err != nil {
		return fmt.Errorf("custody: persist role %s: %w", role, err)
	}
	return nil
}

// HasRole reports whether the address holds the role. Lookup failures read as
// no membership.
func (r *AccessControlRegistry) HasRole(role Role, addr [20]byte) bool {
	if r == nil || r.store == nil {
		return false
	}
	record, err := r.members(role)
	if err != nil {
		return false
	}
	for _, member := range record.Members {
		if bytes.Equal(member, addr[:]) {
			return true
		}
	}
	return false
}

// RequireRole returns ErrUnauthorized when the address lacks the role.
func (r *AccessControlRegistry) RequireRole(role Role, addr [20]byte) error {
	if r == nil {
		return fmt.Errorf("custody: access registry not initialised")
	}
	if !r.HasRole(role, addr) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, role)
	}
	return nil
}

// Grant adds the target to the role. Only admins may grant.
func (r *AccessControlRegistry) Grant(caller [20]byte, role Role, target [20]byte) error {
	if r == nil || r.store == nil {
		return fmt.Errorf("custody: access registry not initialised")
	}
	if err := r.RequireRole(RoleAdmin, caller); err != nil {
		return err
	}
	if target == ([20]byte{}) {
		return ErrZeroAddress
	}
	return r.addMember(role, target)
}

// Revoke removes the target from the role. Only admins may revoke.
func (r *AccessControlRegistry) Revoke(caller [20]byte, role Role, target [20]byte) error {
	if r == nil || r.store == nil {
		return fmt.Errorf("custody: access registry not initialised")
	}
	if err := r.RequireRole(RoleAdmin, caller); err != nil {
		return err
	}
	if target == ([20]byte{}) {
		return ErrZeroAddress
	}
	return r.removeMember(role, target)
}

// Members returns the role's membership sorted by address.
func (r *AccessControlRegistry) Members(role Role) ([][20]byte, error) {
	if r == nil || r.store == nil {
		return nil, fmt.Errorf("custody: access registry not initialised")
	}
	record, err := r.members(role)
	if err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(record.Members))
	for _, member := range record.Members {
		var addr [20]byte
		copy(addr[:], member)
		out = append(out, addr)
	}
	return out, nil
}
