// Package optimistic keeps a speculative view of an entity list while
// mutations are in flight, and replaces it with the authoritative list once
// the backend has answered.
package optimistic

import "fmt"

// Sentinel ids mark in-flight rows so the presenting layer can style them
// without a separate status field. They are replaced on the next
// authoritative read.
const (
	SentinelOptimistic = "optimistic"
	SentinelDelete     = "delete"
)

// IsSentinel reports whether id is one of the reserved in-flight ids.
func IsSentinel(id string) bool {
	return id == SentinelOptimistic || id == SentinelDelete
}

// Kind is the type of mutation an intent requests.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Entity is the shape the reconciler needs from a record. Implementations
// are value types: WithEntityID and Merge return modified copies.
type Entity[T any] interface {
	EntityID() string
	WithEntityID(id string) T
	// Merge returns the receiver with patch's editable fields copied over,
	// empty values included. Payload fields win, as on the server.
	Merge(patch T) T
}

// Intent is a user-originated request to create, update or delete one record.
// For deletes only the payload id is read.
type Intent[T any] struct {
	Kind    Kind
	Payload T
}

// Create returns a create intent for payload.
func Create[T any](payload T) Intent[T] {
	return Intent[T]{Kind: KindCreate, Payload: payload}
}

// Update returns an update intent for payload. payload's id selects the row.
func Update[T any](payload T) Intent[T] {
	return Intent[T]{Kind: KindUpdate, Payload: payload}
}

// Delete returns a delete intent for the row identified by payload.
func Delete[T any](payload T) Intent[T] {
	return Intent[T]{Kind: KindDelete, Payload: payload}
}

// DeletePolicy selects how a pending delete is shown.
type DeletePolicy int

const (
	// DeleteMark keeps the row in place with its id rewritten to SentinelDelete.
	DeleteMark DeletePolicy = iota
	// DeleteRemove drops the row from the list immediately.
	DeleteRemove
)

func (p DeletePolicy) String() string {
	switch p {
	case DeleteMark:
		return "mark"
	case DeleteRemove:
		return "remove"
	default:
		return fmt.Sprintf("DeletePolicy(%d)", int(p))
	}
}

// ParseDeletePolicy parses "mark" or "remove". The empty string is DeleteMark.
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch s {
	case "", "mark":
		return DeleteMark, nil
	case "remove":
		return DeleteRemove, nil
	default:
		return DeleteMark, fmt.Errorf("unknown delete policy %q (want mark or remove)", s)
	}
}

// Reconciler computes the speculative list for an intent. The zero value
// uses DeleteMark.
type Reconciler[T Entity[T]] struct {
	Delete DeletePolicy
}

// Apply returns the list as it should be displayed while intent is in
// flight. It never modifies list and never fails: an update or delete whose
// id matches no row (or targets a sentinel) returns an equal copy.
func (r Reconciler[T]) Apply(list []T, intent Intent[T]) []T {
	switch intent.Kind {
	case KindCreate:
		out := make([]T, len(list), len(list)+1)
		copy(out, list)
		return append(out, intent.Payload.WithEntityID(SentinelOptimistic))

	case KindUpdate:
		id := intent.Payload.EntityID()
		out := make([]T, len(list))
		for i, item := range list {
			if matches(item, id) {
				item = item.Merge(intent.Payload).WithEntityID(SentinelOptimistic)
			}
			out[i] = item
		}
		return out

	case KindDelete:
		id := intent.Payload.EntityID()
		if r.Delete == DeleteRemove {
			out := make([]T, 0, len(list))
			for _, item := range list {
				if !matches(item, id) {
					out = append(out, item)
				}
			}
			return out
		}
		out := make([]T, len(list))
		for i, item := range list {
			if matches(item, id) {
				item = item.WithEntityID(SentinelDelete)
			}
			out[i] = item
		}
		return out
	}

	out := make([]T, len(list))
	copy(out, list)
	return out
}

// Apply reconciles with the default policy (DeleteMark).
func Apply[T Entity[T]](list []T, intent Intent[T]) []T {
	return Reconciler[T]{}.Apply(list, intent)
}

// matches is by real id only; rows already carrying a sentinel are not
// addressable by later intents.
func matches[T Entity[T]](item T, id string) bool {
	if id == "" || IsSentinel(id) {
		return false
	}
	return item.EntityID() == id
}
