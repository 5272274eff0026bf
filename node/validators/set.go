// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package validators

import (
	"encoding/hex"
	"encoding/json"
	"sort"

	"gitlab.com/jaxnet/smicp/types/chainhash"
	"gitlab.com/jaxnet/smicp/types/coreerr"
)

// Set is the validator membership together with its quorum threshold.
// A Set is not safe for concurrent mutation; the registry serializes it.
type Set struct {
	members  map[string]Validator
	required int
}

// NewSet builds a set.  required must be in [1, len(members)].
func NewSet(required int, members ...Validator) (*Set, error) {
	s := &Set{members: make(map[string]Validator, len(members))}
	for _, v := range members {
		parsed, err := ParseValidator(v.ID, v.PubKey)
		if err != nil {
			return nil, err
		}
		if _, ok := s.members[parsed.ID]; ok {
			return nil, coreerr.New(coreerr.ErrInvalidInput, parsed.ID,
				"validator listed twice")
		}
		s.members[parsed.ID] = parsed
	}
	if err := s.checkRequired(required, len(s.members)); err != nil {
		return nil, err
	}
	s.required = required
	return s, nil
}

func (s *Set) checkRequired(required, size int) error {
	if required < 1 {
		return coreerr.Newf(coreerr.ErrInvalidInput, "validators",
			"required signatures %d must be at least 1", required)
	}
	if required > size {
		return coreerr.Newf(coreerr.ErrInvalidInput, "validators",
			"required signatures %d exceeds %d validators", required, size)
	}
	return nil
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	c := &Set{members: make(map[string]Validator, len(s.members)), required: s.required}
	for id, v := range s.members {
		c.members[id] = v
	}
	return c
}

// Len returns the number of validators.
func (s *Set) Len() int { return len(s.members) }

// Required returns the quorum threshold.
func (s *Set) Required() int { return s.required }

// Has reports membership.
func (s *Set) Has(id string) bool {
	_, ok := s.members[id]
	return ok
}

// Members returns the validators ordered by id.
func (s *Set) Members() []Validator {
	out := make([]Validator, 0, len(s.members))
	for _, v := range s.members {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Add inserts a validator.
func (s *Set) Add(v Validator) (Validator, error) {
	parsed, err := ParseValidator(v.ID, v.PubKey)
	if err != nil {
		return Validator{}, err
	}
	if s.Has(parsed.ID) {
		return Validator{}, coreerr.New(coreerr.ErrInvalidInput, parsed.ID,
			"validator already in set")
	}
	s.members[parsed.ID] = parsed
	return parsed, nil
}

// Remove deletes a validator.  The set may not shrink below the threshold.
func (s *Set) Remove(id string) error {
	if !s.Has(id) {
		return coreerr.New(coreerr.ErrNotFound, id, "validator not in set")
	}
	if err := s.checkRequired(s.required, len(s.members)-1); err != nil {
		return err
	}
	delete(s.members, id)
	return nil
}

// SetRequired changes the quorum threshold.
func (s *Set) SetRequired(n int) error {
	if err := s.checkRequired(n, len(s.members)); err != nil {
		return err
	}
	s.required = n
	return nil
}

// Signers returns the distinct member ids whose signatures verify against
// hash, in first-seen order.  Unknown signers, malformed and invalid
// signatures are skipped, and repeated signers count once.
func (s *Set) Signers(hash chainhash.Hash, sigs []Signature) []string {
	seen := make(map[string]struct{}, len(sigs))
	signers := make([]string, 0, len(sigs))

	accept := func(v *Validator, raw []byte) bool {
		if _, dup := seen[v.ID]; dup {
			return false
		}
		if !v.Verify(hash, raw) {
			return false
		}
		seen[v.ID] = struct{}{}
		signers = append(signers, v.ID)
		return true
	}

	for _, sig := range sigs {
		raw, err := hex.DecodeString(sig.Signature)
		if err != nil {
			continue
		}
		if sig.Validator != "" {
			if v, ok := s.members[sig.Validator]; ok {
				accept(&v, raw)
			}
			continue
		}
		for _, v := range s.Members() {
			v := v
			if accept(&v, raw) {
				break
			}
		}
	}
	return signers
}

type setRecord struct {
	Required   int         `json:"required"`
	Validators []Validator `json:"validators"`
}

// MarshalJSON encodes the set for persistence.
func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(setRecord{Required: s.required, Validators: s.Members()})
}

// UnmarshalJSON decodes and re-validates a persisted set.
func (s *Set) UnmarshalJSON(data []byte) error {
	var rec setRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	parsed, err := NewSet(rec.Required, rec.Validators...)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}
