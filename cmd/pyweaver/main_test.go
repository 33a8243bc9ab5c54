package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edwardmakesthings/pyweaver/internal/cmd"
)

func TestRootCommandConstructs(t *testing.T) {
	root := cmd.NewRootCommand()
	assert.Equal(t, "pyweaver", root.Use)
	assert.True(t, root.SilenceUsage)
}
