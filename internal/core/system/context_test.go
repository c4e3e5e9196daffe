package system

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quarkgo/quark/internal/core/schedule"
)

type closingSystem struct {
	System
	closed int
	err    error
}

func (c *closingSystem) Close() error {
	c.closed++
	return c.err
}

func newTestContext(t *testing.T, resources ...schedule.ResourceID) *Context {
	t.Helper()
	sc := NewContext(zaptest.NewLogger(t))
	require.NoError(t, sc.RegisterResource(resources...))
	return sc
}

func TestContext_Lists(t *testing.T) {
	sc := newTestContext(t)
	_, err := sc.CreateList("update")
	require.NoError(t, err)
	_, err = sc.CreateList("input")
	require.NoError(t, err)

	_, err = sc.CreateList("update")
	assert.ErrorContains(t, err, "already exists")
	_, err = sc.List("render")
	assert.ErrorContains(t, err, "does not exist")
	assert.Equal(t, []string{"input", "update"}, sc.Lists())

	assert.Error(t, sc.Register("render", Tag("x"), Back()))
}

func TestContext_RegisterResource(t *testing.T) {
	sc := newTestContext(t, "position", "velocity")
	assert.True(t, sc.Resources().Has("position"))
	assert.Error(t, sc.RegisterResource("position"))
}

func TestContext_PlanCachedByVersion(t *testing.T) {
	sc := newTestContext(t, "r1")
	_, err := sc.CreateList("update")
	require.NoError(t, err)
	require.NoError(t, sc.Register("update", Tag("A", schedule.Reads("r1")), Back()))
	require.NoError(t, sc.Register("update", Tag("B", schedule.Writes("r1")), Back()))

	p1, err := sc.Plan("update")
	require.NoError(t, err)
	p2, err := sc.Plan("update")
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, []schedule.SystemID{0}, p1.Graph.Dependencies(1))

	require.NoError(t, sc.Register("update", Tag("C", schedule.Reads("r1")), Front()))
	p3, err := sc.Plan("update")
	require.NoError(t, err)
	assert.NotSame(t, p1, p3)
	assert.Equal(t, "C", p3.Graph.Name(0))
	assert.Equal(t, []schedule.SystemID{0, 1}, p3.Graph.Dependencies(2))
}

func TestContext_PlanUnknownResource(t *testing.T) {
	sc := newTestContext(t, "r1")
	_, err := sc.CreateList("update")
	require.NoError(t, err)
	require.NoError(t, sc.Register("update", Tag("A", schedule.Writes("r9")), Back()))

	_, err = sc.Plan("update")
	assert.ErrorIs(t, err, schedule.ErrUnknownResource)
	assert.ErrorContains(t, err, "build plan for list update")
}

func TestContext_SaveLoad(t *testing.T) {
	sc := newTestContext(t)
	l, err := sc.CreateList("update")
	require.NoError(t, err)
	require.NoError(t, l.Add(Tag("a"), Back()))
	require.NoError(t, l.Add(Tag("b"), Back()))

	sc.Save("base")
	require.NoError(t, l.Add(Tag("debug"), Front()))
	require.NoError(t, l.Remove("a"))
	assert.Equal(t, []string{"debug", "b"}, l.Names())

	require.NoError(t, sc.Load("base"))
	assert.Equal(t, []string{"a", "b"}, l.Names())
	assert.ErrorContains(t, sc.Load("nope"), "no saved system snapshot")
}

func TestContext_Close(t *testing.T) {
	sc := newTestContext(t)
	_, err := sc.CreateList("input")
	require.NoError(t, err)
	_, err = sc.CreateList("update")
	require.NoError(t, err)

	boom := errors.New("vm busy")
	shared := &closingSystem{System: Func("script", func(context.Context) error { return nil })}
	failing := &closingSystem{System: Tag("other"), err: boom}
	require.NoError(t, sc.Register("input", shared, Back()))
	require.NoError(t, sc.Register("update", shared, Back()))
	require.NoError(t, sc.Register("update", failing, Back()))

	err = sc.Close()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, shared.closed)
	assert.Equal(t, 1, failing.closed)
	assert.Empty(t, sc.Lists())
}

func TestTag(t *testing.T) {
	tag := Tag("barrier", schedule.Writes("world"))
	assert.True(t, IsTag(tag))
	assert.NoError(t, tag.Run(context.Background()))
	assert.False(t, IsTag(Func("f", func(context.Context) error { return nil })))
}

func TestContext_SaveLoadList(t *testing.T) {
	sc := newTestContext(t)
	update, err := sc.CreateList("update")
	require.NoError(t, err)
	render, err := sc.CreateList("render")
	require.NoError(t, err)
	require.NoError(t, update.Add(Tag("a"), Back()))
	require.NoError(t, render.Add(Tag("draw"), Back()))

	require.NoError(t, sc.SaveList("base", "update"))
	require.NoError(t, update.Add(Tag("debug"), Front()))
	require.NoError(t, render.Add(Tag("overlay"), Back()))

	require.NoError(t, sc.LoadList("base", "update"))
	assert.Equal(t, []string{"a"}, update.Names())
	assert.Equal(t, []string{"draw", "overlay"}, render.Names(), "other lists are untouched")

	assert.ErrorContains(t, sc.LoadList("base", "render"), `no saved snapshot "base" for list render`)
	assert.ErrorContains(t, sc.SaveList("base", "ghost"), "does not exist")
	assert.ErrorContains(t, sc.Load("base"), "no saved system snapshot", "list snapshots are separate")
}

// valueCloser is not comparable, so it cannot be a map key.
type valueCloser struct {
	name   string
	closed *int
	tags   []string
}

func (v valueCloser) Name() string              { return v.name }
func (v valueCloser) Access() []schedule.Access { return nil }
func (v valueCloser) Run(context.Context) error { return nil }
func (v valueCloser) Close() error              { *v.closed++; return nil }

func TestContext_CloseSnapshotsAndValues(t *testing.T) {
	sc := newTestContext(t)
	l, err := sc.CreateList("update")
	require.NoError(t, err)

	removed := &closingSystem{System: Tag("removed")}
	saved := &closingSystem{System: Tag("saved")}
	var valueClosed int
	require.NoError(t, l.Add(removed, Back()))
	require.NoError(t, l.Add(saved, Back()))
	require.NoError(t, l.Add(valueCloser{name: "value", closed: &valueClosed, tags: []string{"x"}}, Back()))

	sc.Save("all")
	require.NoError(t, sc.SaveList("all", "update"))
	require.NoError(t, l.Remove("removed"))

	require.NotPanics(t, func() { require.NoError(t, sc.Close()) })
	assert.Equal(t, 1, removed.closed, "a system only a snapshot holds is still closed")
	assert.Equal(t, 1, saved.closed)
	assert.Positive(t, valueClosed)
}
