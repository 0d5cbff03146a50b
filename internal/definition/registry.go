package definition

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pitabwire/mercura/model"
)

// snapshot is an immutable collection of all definitions indexed by ID.
type snapshot struct {
	resources map[string]model.ResourceDefinition
	pages     map[string]pageBinding
	forms     map[string]formBinding
	checksum  string
}

// pageBinding ties a page to its owning resource for lookup by page ID.
type pageBinding struct {
	page     model.PageDefinition
	resource string
}

// formBinding ties a form to its owning resource for lookup by form ID.
type formBinding struct {
	form     model.FormDefinition
	resource string
}

// Registry is a read-optimized, thread-safe store of all loaded definitions.
// It uses atomic pointer swap for lock-free concurrent reads.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates a Registry from the given definitions.
func NewRegistry(defs []model.ResourceDefinition) *Registry {
	r := &Registry{}
	r.Replace(defs)
	return r
}

// Replace atomically swaps the registry contents with a new snapshot built
// from the given definitions.
func (r *Registry) Replace(defs []model.ResourceDefinition) {
	s := &snapshot{
		resources: make(map[string]model.ResourceDefinition, len(defs)),
		pages:     make(map[string]pageBinding),
		forms:     make(map[string]formBinding),
	}

	var checksumParts []string

	for _, def := range defs {
		s.resources[def.Resource] = def
		checksumParts = append(checksumParts, def.Checksum)

		if def.Page != nil {
			s.pages[def.Page.ID] = pageBinding{page: *def.Page, resource: def.Resource}
		}

		for _, f := range def.Forms {
			s.forms[f.ID] = formBinding{form: f, resource: def.Resource}
		}
	}

	sort.Strings(checksumParts)
	combined := strings.Join(checksumParts, ":")
	s.checksum = fmt.Sprintf("%x", sha256.Sum256([]byte(combined)))

	r.snap.Store(s)
}

func (r *Registry) current() *snapshot {
	return r.snap.Load()
}

// GetResource returns the resource definition with the given name.
func (r *Registry) GetResource(resource string) (model.ResourceDefinition, bool) {
	d, ok := r.current().resources[resource]
	return d, ok
}

// GetPage returns the page definition with the given ID along with the name
// of the resource that owns it.
func (r *Registry) GetPage(pageID string) (model.PageDefinition, string, bool) {
	b, ok := r.current().pages[pageID]
	return b.page, b.resource, ok
}

// GetForm returns the form definition with the given ID along with the name
// of the resource that owns it.
func (r *Registry) GetForm(formID string) (model.FormDefinition, string, bool) {
	b, ok := r.current().forms[formID]
	return b.form, b.resource, ok
}

// AllResources returns all resource definitions sorted by name.
func (r *Registry) AllResources() []model.ResourceDefinition {
	s := r.current()
	defs := make([]model.ResourceDefinition, 0, len(s.resources))
	for _, d := range s.resources {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Resource < defs[j].Resource })
	return defs
}

// Checksum returns the combined checksum of all loaded definitions.
func (r *Registry) Checksum() string {
	return r.current().checksum
}
