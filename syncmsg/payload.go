// Package syncmsg defines the wire message containers exchanged between
// client and server — BaseMessage, PullRequestMessage, PullMessage,
// PushMessage, RegisterMessage — and the push-signing algorithm.
package syncmsg

import (
	"encoding/json"
	"fmt"
)

// Object is one wrapped tracked record: its model name, primary key, and
// scalar column values (already codec-encoded), plus any extension
// fields.
type Object struct {
	Model  string
	PK     int64
	Fields map[string]interface{}
}

// Payload is a mapping from model name to the set of wrapped objects of
// that model referenced by a message. Adding the same (model, pk) twice
// is a no-op, matching spec.md §4.5.
type Payload struct {
	byModel map[string]map[int64]Object
}

// NewPayload returns an empty payload.
func NewPayload() *Payload {
	return &Payload{byModel: make(map[string]map[int64]Object)}
}

// Add inserts obj into the payload. A second Add for the same
// (Model, PK) is a no-op, regardless of field differences.
func (p *Payload) Add(obj Object) {
	if p.byModel == nil {
		p.byModel = make(map[string]map[int64]Object)
	}
	bucket, ok := p.byModel[obj.Model]
	if !ok {
		bucket = make(map[int64]Object)
		p.byModel[obj.Model] = bucket
	}
	if _, exists := bucket[obj.PK]; exists {
		return
	}
	bucket[obj.PK] = obj
}

// Has reports whether the payload already carries (model, pk).
func (p *Payload) Has(model string, pk int64) bool {
	bucket, ok := p.byModel[model]
	if !ok {
		return false
	}
	_, ok = bucket[pk]
	return ok
}

// Get returns the object for (model, pk), if present.
func (p *Payload) Get(model string, pk int64) (Object, bool) {
	bucket, ok := p.byModel[model]
	if !ok {
		return Object{}, false
	}
	obj, ok := bucket[pk]
	return obj, ok
}

// Models returns the set of model names present in the payload.
func (p *Payload) Models() []string {
	out := make([]string, 0, len(p.byModel))
	for m := range p.byModel {
		out = append(out, m)
	}
	return out
}

// Objects returns every object of the given model, in no particular
// order.
func (p *Payload) Objects(model string) []Object {
	bucket := p.byModel[model]
	out := make([]Object, 0, len(bucket))
	for _, obj := range bucket {
		out = append(out, obj)
	}
	return out
}

// MarshalJSON renders the payload as {<ModelName>: [{...fields, pk}, ...]}.
func (p *Payload) MarshalJSON() ([]byte, error) {
	out := make(map[string][]map[string]interface{}, len(p.byModel))
	for model, bucket := range p.byModel {
		records := make([]map[string]interface{}, 0, len(bucket))
		for pk, obj := range bucket {
			rec := make(map[string]interface{}, len(obj.Fields)+1)
			for k, v := range obj.Fields {
				rec[k] = v
			}
			rec["pk"] = pk
			records = append(records, rec)
		}
		out[model] = records
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the {<ModelName>: [...]} shape back into a
// Payload. Each record must carry a "pk" field; unknown additional
// fields are kept verbatim (decode-side interpretation of codec Kinds
// is the caller's responsibility, per model schema).
func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw map[string][]map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.byModel = make(map[string]map[int64]Object)
	for model, records := range raw {
		for _, rec := range records {
			pkRaw, ok := rec["pk"]
			if !ok {
				return fmt.Errorf("syncmsg: payload record for %s missing pk", model)
			}
			pkFloat, ok := pkRaw.(float64)
			if !ok {
				return fmt.Errorf("syncmsg: payload record for %s has non-numeric pk", model)
			}
			fields := make(map[string]interface{}, len(rec))
			for k, v := range rec {
				if k == "pk" {
					continue
				}
				fields[k] = v
			}
			p.Add(Object{Model: model, PK: int64(pkFloat), Fields: fields})
		}
	}
	return nil
}
