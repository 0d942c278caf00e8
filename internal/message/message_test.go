package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRejectsMissingType(t *testing.T) {
	_, err := Decode([]byte(`{"key":"quality"}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncodeOmitsEmptySections(t *testing.T) {
	raw, err := (&Message{Type: TypeShrink}).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"SHRINK"}`, string(raw))
}

func TestErrorf(t *testing.T) {
	m := Errorf(KindUnknownKey, "no setting %q", "colour")
	assert.Equal(t, TypeError, m.Type)
	assert.Equal(t, KindUnknownKey, m.Kind)
	assert.Equal(t, `no setting "colour"`, m.Error)
}
