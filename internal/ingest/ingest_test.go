package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeUpdater struct {
	ids    []string
	values []float64
}

func (f *fakeUpdater) Update(id string, value float64) bool {
	f.ids = append(f.ids, id)
	f.values = append(f.values, value)
	return true
}

func TestApply(t *testing.T) {
	f := &fakeUpdater{}
	Apply(f, "loxone/state/st-temp-a", []byte("21.5"))

	assert.Equal(t, []string{"st-temp-a"}, f.ids)
	assert.Equal(t, []float64{21.5}, f.values)
}

func TestApplyTrimsWhitespace(t *testing.T) {
	f := &fakeUpdater{}
	Apply(f, "loxone/state/st-1", []byte(" 1.0\n"))

	assert.Equal(t, []float64{1.0}, f.values)
}

func TestApplyDropsMalformedPayload(t *testing.T) {
	f := &fakeUpdater{}
	Apply(f, "loxone/state/st-1", []byte("warm"))
	Apply(f, "loxone/state/st-1", nil)

	assert.Empty(t, f.ids)
}

func TestStateID(t *testing.T) {
	assert.Equal(t, "st-1", StateID("loxone/state/st-1"))
	assert.Equal(t, "st-1", StateID("st-1"))
}
