package viewsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Declare(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		properties []string
		wantErr    bool
	}{
		{name: "valid target", target: "inventory", properties: []string{"items", "gold"}},
		{name: "target without properties", target: "empty"},
		{name: "empty target name", target: "", properties: []string{"x"}, wantErr: true},
		{name: "empty property name", target: "bad", properties: []string{"x", ""}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Declare(tt.target, tt.properties)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, r.HasTarget(tt.target))
		})
	}
}

func TestRegistry_MergesProperties(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("inventory", []string{"items", "gold"}))
	require.NoError(t, r.Declare("inventory", []string{"gold", "weight"}, WithInterval(time.Second)))

	props, err := r.Properties("inventory")
	require.NoError(t, err)
	assert.Equal(t, []string{"items", "gold", "weight"}, props)
	assert.Equal(t, time.Second, r.Interval("inventory"))
	assert.Equal(t, []string{"inventory"}, r.Targets())
}

func TestRegistry_Queries(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("party", []string{"members"}))
	require.NoError(t, r.Declare("market", []string{"prices", "stock"}))

	assert.Equal(t, []string{"party", "market"}, r.Targets())
	assert.True(t, r.HasProperty("market", "stock"))
	assert.False(t, r.HasProperty("market", "members"))
	assert.False(t, r.HasProperty("nope", "members"))
	assert.Zero(t, r.Interval("party"))

	_, err := r.Properties("nope")
	assert.ErrorIs(t, err, ErrUnknownTarget)

	props, err := r.Properties("market")
	require.NoError(t, err)
	props[0] = "changed"
	again, _ := r.Properties("market")
	assert.Equal(t, "prices", again[0], "Properties returns a copy")
}

func TestRegistry_Validate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("quests", []string{"list"}))

	assert.NoError(t, r.validate("quests", "list"))
	assert.ErrorIs(t, r.validate("quests", "tracker"), ErrUnknownProperty)
	assert.ErrorIs(t, r.validate("journal", "list"), ErrUnknownTarget)
}
