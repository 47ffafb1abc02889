package amqp08

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMethodSignatureLessIsLexicographic(t *testing.T) {
	assert.True(t, sigConnectionStart.Less(sigChannelOpen))
	assert.False(t, sigChannelOpen.Less(sigConnectionStart))
	assert.True(t, sigChannelOpen.Less(sigChannelOpenOk))
}

func TestMethodSignatureStringUsesKnownName(t *testing.T) {
	assert.Equal(t, "Connection.Start(10,10)", sigConnectionStart.String())
	unknown := MethodSignature{Class: 999, Method: 1}
	assert.Equal(t, "(999,1)", unknown.String())
}

func TestIsContentMethod(t *testing.T) {
	assert.True(t, isContentMethod(sigBasicDeliver))
	assert.True(t, isContentMethod(sigBasicReturn))
	assert.True(t, isContentMethod(sigBasicGetOk))
	assert.False(t, isContentMethod(sigChannelOpen))
}
