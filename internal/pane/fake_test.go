// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package pane

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeController_CreateAndExists(t *testing.T) {
	ctx := context.Background()
	f := NewFakeController()

	assert.False(t, f.Exists(ctx, "s1"))

	require.NoError(t, f.CreateWithCommand(ctx, "s1", "/tmp", []string{"claude"}))
	assert.True(t, f.Exists(ctx, "s1"))

	err := f.CreateWithCommand(ctx, "s1", "/tmp", []string{"claude"})
	assert.Error(t, err)
}

func TestFakeController_SendTextRequiresPane(t *testing.T) {
	ctx := context.Background()
	f := NewFakeController()

	err := f.SendText(ctx, "missing", "hello")
	assert.Error(t, err)

	require.NoError(t, f.CreateWithCommand(ctx, "s1", "/tmp", nil))
	require.NoError(t, f.SendText(ctx, "s1", "hello"))
	assert.Equal(t, []string{"hello"}, f.SentText("s1"))
}

func TestFakeController_KillRemovesFromList(t *testing.T) {
	ctx := context.Background()
	f := NewFakeController()
	require.NoError(t, f.CreateWithCommand(ctx, "s1", "/tmp", nil))
	require.NoError(t, f.CreateWithCommand(ctx, "s2", "/tmp", nil))

	require.NoError(t, f.Kill(ctx, "s1"))

	names, err := f.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s2"}, names)
	assert.False(t, f.Exists(ctx, "s1"))
}

func TestFakeController_Capture(t *testing.T) {
	ctx := context.Background()
	f := NewFakeController()
	require.NoError(t, f.CreateWithCommand(ctx, "s1", "/tmp", nil))
	f.SetCapture("s1", []byte("> "))

	out, err := f.Capture(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "> ", string(out))
}
