package ext

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync.evalgo.org/codec"
)

type widget struct {
	ID     int64
	Weight string
}

func TestRegistry_EncodeRunsLoadAndCodec(t *testing.T) {
	r := NewRegistry()
	r.Register("Widget", Extension{
		Name: "weight",
		Type: codec.KindDecimal,
		Load: func(obj interface{}) (interface{}, error) {
			w := obj.(*widget)
			return codec.Decimal(w.Weight), nil
		},
	})

	fields := r.Encode("Widget", &widget{Weight: "12.5"})
	assert.Equal(t, "12.5", fields["weight"])
}

func TestRegistry_EncodeOmitsFieldOnLoadError(t *testing.T) {
	r := NewRegistry()
	r.Register("Widget", Extension{
		Name: "weight",
		Type: codec.KindDecimal,
		Load: func(obj interface{}) (interface{}, error) {
			return nil, errors.New("boom")
		},
	})

	fields := r.Encode("Widget", &widget{})
	_, ok := fields["weight"]
	assert.False(t, ok)
}

func TestRegistry_AfterSaveDecodesAndCallsSave(t *testing.T) {
	r := NewRegistry()
	var saved interface{}
	r.Register("Widget", Extension{
		Name: "weight",
		Type: codec.KindDecimal,
		Save: func(obj interface{}, value interface{}) error {
			saved = value
			return nil
		},
	})

	r.AfterSave("Widget", &widget{}, map[string]interface{}{"weight": "7.25"})
	require.Equal(t, codec.Decimal("7.25"), saved)
}

func TestRegistry_AfterSaveLogsOnSaveError(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register("Widget", Extension{
		Name: "weight",
		Type: codec.KindDecimal,
		Save: func(obj interface{}, value interface{}) error {
			called = true
			return errors.New("boom")
		},
	})

	assert.NotPanics(t, func() {
		r.AfterSave("Widget", &widget{}, map[string]interface{}{"weight": "1"})
	})
	assert.True(t, called)
}

func TestRegistry_AfterChangeCallsDeleteHook(t *testing.T) {
	r := NewRegistry()
	var gotPrior, gotNext interface{}
	r.Register("Widget", Extension{
		Name: "weight",
		Delete: func(prior, next interface{}) error {
			gotPrior, gotNext = prior, next
			return nil
		},
	})

	prior := &widget{ID: 1}
	r.AfterChange("Widget", prior, nil)
	assert.Equal(t, prior, gotPrior)
	assert.Nil(t, gotNext)
}

func TestRegistry_AfterChangeSkipsExtensionsWithoutDeleteHook(t *testing.T) {
	r := NewRegistry()
	r.Register("Widget", Extension{Name: "weight"})
	assert.NotPanics(t, func() {
		r.AfterChange("Widget", &widget{}, nil)
	})
}

func TestRegistry_ForReturnsCopyNotSharedSlice(t *testing.T) {
	r := NewRegistry()
	r.Register("Widget", Extension{Name: "a"})
	got := r.For("Widget")
	got[0].Name = "mutated"
	assert.Equal(t, "a", r.For("Widget")[0].Name)
}
