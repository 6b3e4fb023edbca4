// Package ext implements extensions: virtual fields a tracked model can
// register alongside its scalar columns, with load/save/delete hooks
// that run at encode and apply time.
package ext

import (
	"sync"

	"sync.evalgo.org/codec"
	"sync.evalgo.org/common"
)

// LoadFunc reads the virtual field's current value off a live object.
type LoadFunc func(obj interface{}) (interface{}, error)

// SaveFunc persists a decoded virtual field value onto obj, called by
// AfterSave once obj's row has been written.
type SaveFunc func(obj interface{}, value interface{}) error

// DeleteFunc is invoked on update or delete with the prior and new
// object (next is nil for a full delete). Optional.
type DeleteFunc func(prior interface{}, next interface{}) error

// Extension is one registered virtual field.
type Extension struct {
	Name   string
	Type   codec.Kind
	Load   LoadFunc
	Save   SaveFunc
	Delete DeleteFunc // nil if the model has no delete-side hook
}

// Registry indexes extensions by the model name they extend. A model
// may register any number of extensions.
type Registry struct {
	mu      sync.RWMutex
	byModel map[string][]Extension
}

// NewRegistry returns an empty extension registry.
func NewRegistry() *Registry {
	return &Registry{byModel: make(map[string][]Extension)}
}

// Register adds ext to modelName's extension set.
func (r *Registry) Register(modelName string, extension Extension) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byModel[modelName] = append(r.byModel[modelName], extension)
}

// For returns every extension registered for modelName.
func (r *Registry) For(modelName string) []Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Extension(nil), r.byModel[modelName]...)
}

// Encode runs every registered Load hook for modelName against obj and
// returns the resulting virtual-field values, codec-encoded by Kind. A
// failing Load is logged and its field omitted; it never aborts the
// caller.
func (r *Registry) Encode(modelName string, obj interface{}) map[string]interface{} {
	extensions := r.For(modelName)
	if len(extensions) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(extensions))
	for _, e := range extensions {
		value, err := e.Load(obj)
		if err != nil {
			common.Logger.WithFields(map[string]interface{}{
				"model":     modelName,
				"extension": e.Name,
			}).WithError(err).Warn("ext: load hook failed, omitting field")
			continue
		}
		encoded, err := codec.Encode(value)
		if err != nil {
			common.Logger.WithFields(map[string]interface{}{
				"model":     modelName,
				"extension": e.Name,
			}).WithError(err).Warn("ext: encode failed, omitting field")
			continue
		}
		out[e.Name] = encoded
	}
	return out
}

// AfterSave runs every registered Save hook for modelName against obj
// using the decoded values already present in fields (keyed by
// extension name, codec-encoded as received over the wire or from a
// local write). AfterSave runs the hooks when it is called and does not
// wait for a commit: merge.Merge calls it right after each remote insert
// or update is applied, inside the caller's transaction. Hook failures
// are logged; they do not abort the transaction.
func (r *Registry) AfterSave(modelName string, obj interface{}, fields map[string]interface{}) {
	for _, e := range r.For(modelName) {
		raw, ok := fields[e.Name]
		if !ok {
			continue
		}
		value, err := codec.Decode(raw, e.Type)
		if err != nil {
			common.Logger.WithFields(map[string]interface{}{
				"model":     modelName,
				"extension": e.Name,
			}).WithError(err).Warn("ext: decode failed, skipping save")
			continue
		}
		if err := e.Save(obj, value); err != nil {
			common.Logger.WithFields(map[string]interface{}{
				"model":     modelName,
				"extension": e.Name,
			}).WithError(err).Warn("ext: save hook failed")
		}
	}
}

// AfterChange runs every registered Delete hook for modelName with the
// prior and new object (next is nil for a full delete). Hook failures
// are logged; they do not abort the transaction.
func (r *Registry) AfterChange(modelName string, prior, next interface{}) {
	for _, e := range r.For(modelName) {
		if e.Delete == nil {
			continue
		}
		if err := e.Delete(prior, next); err != nil {
			common.Logger.WithFields(map[string]interface{}{
				"model":     modelName,
				"extension": e.Name,
			}).WithError(err).Warn("ext: delete hook failed")
		}
	}
}
