package crud

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Requester is the identity acting on a request. Identity returns the name
// claim, which ownership checks parse as an integer user id.
type Requester interface {
	Identity() string
}

// Identity is a Requester backed by a plain string.
type Identity string

func (i Identity) Identity() string { return string(i) }

// CrudParam is the per-call request envelope.
//
// Which fields are meaningful depends on the verb: Entity for Create and Update,
// EntityIDs for GetByID and Delete, EntityIDs plus Patch for PartialUpdate.
type CrudParam[T any] struct {
	Requester Requester
	Entity    *T
	EntityIDs []int64
	Patch     json.RawMessage
}

// RequesterID parses the requester identity as an integer.
func RequesterID(r Requester) (int64, bool) {
	if r == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(r.Identity()), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func distinctIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
