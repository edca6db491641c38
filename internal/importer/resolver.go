package importer

import (
	"strings"

	"github.com/google/uuid"
	"github.com/ledgerline/api/internal/store"
)

// Index is an in-memory lookup over existing persisted entities, built once
// per import run and read-only afterwards. References resolve by explicit
// identifier, exact code, exact name, canonicalized code, then canonicalized
// name.
type Index struct {
	byID        map[string]uuid.UUID
	byCode      map[string]uuid.UUID
	byName      map[string]uuid.UUID
	byCanonCode map[string]uuid.UUID
	byCanonName map[string]uuid.UUID
}

func NewIndex(refs []store.EntityRef) *Index {
	ix := &Index{
		byID:        make(map[string]uuid.UUID, len(refs)),
		byCode:      make(map[string]uuid.UUID, len(refs)),
		byName:      make(map[string]uuid.UUID, len(refs)),
		byCanonCode: make(map[string]uuid.UUID, len(refs)),
		byCanonName: make(map[string]uuid.UUID, len(refs)),
	}
	for _, ref := range refs {
		ix.Add(ref)
	}
	return ix
}

func (ix *Index) Add(ref store.EntityRef) {
	ix.byID[ref.ID.String()] = ref.ID
	if ref.Code != "" {
		setIfAbsent(ix.byCode, ref.Code, ref.ID)
		setIfAbsent(ix.byCanonCode, Canonicalize(ref.Code), ref.ID)
	}
	if ref.Name != "" {
		setIfAbsent(ix.byName, ref.Name, ref.ID)
		setIfAbsent(ix.byCanonName, Canonicalize(ref.Name), ref.ID)
	}
}

// Resolve maps a free-text reference onto a persisted entity identifier.
func (ix *Index) Resolve(reference string) (uuid.UUID, bool) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return uuid.Nil, false
	}
	if parsed, err := uuid.Parse(ref); err == nil {
		if id, ok := ix.byID[parsed.String()]; ok {
			return id, true
		}
		return uuid.Nil, false
	}
	for _, m := range []map[string]uuid.UUID{ix.byCode, ix.byName} {
		if id, ok := m[ref]; ok {
			return id, true
		}
	}
	canon := Canonicalize(ref)
	if canon == "" {
		return uuid.Nil, false
	}
	for _, m := range []map[string]uuid.UUID{ix.byCanonCode, ix.byCanonName} {
		if id, ok := m[canon]; ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

func setIfAbsent(m map[string]uuid.UUID, key string, id uuid.UUID) {
	if _, exists := m[key]; !exists {
		m[key] = id
	}
}

// Canonicalize lowercases and strips non-alphanumerics, so "ACME-Widget 01"
// and "acme widget_01" collide on purpose.
func Canonicalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Placeholder is a minimal stand-in entity minted for a reference that could
// not be resolved.
type Placeholder struct {
	ID   uuid.UUID
	Code string
	Name string
}

// PlaceholderSet deduplicates placeholder entities within one run: every row
// referencing the same unresolved code-or-name collapses onto one mint.
type PlaceholderSet struct {
	byKey map[string]*Placeholder
	order []*Placeholder
}

func NewPlaceholderSet() *PlaceholderSet {
	return &PlaceholderSet{byKey: make(map[string]*Placeholder)}
}

// Claim returns the placeholder for the given unresolved reference, minting
// it on first sight. The reference doubles as code and name; a code is
// synthesized when the reference is too noisy to serve as one.
func (ps *PlaceholderSet) Claim(reference string) *Placeholder {
	key := Canonicalize(reference)
	if key == "" {
		key = strings.TrimSpace(reference)
	}
	if existing, ok := ps.byKey[key]; ok {
		return existing
	}
	p := &Placeholder{
		ID:   uuid.New(),
		Code: placeholderCode(reference),
		Name: strings.TrimSpace(reference),
	}
	ps.byKey[key] = p
	ps.order = append(ps.order, p)
	return p
}

func (ps *PlaceholderSet) All() []*Placeholder {
	return ps.order
}

func (ps *PlaceholderSet) Len() int {
	return len(ps.order)
}

func placeholderCode(reference string) string {
	canon := Canonicalize(reference)
	if canon == "" {
		canon = shortHash(reference, 10)
	}
	if len(canon) > 24 {
		canon = canon[:24]
	}
	return "IMP-" + strings.ToUpper(canon)
}
