package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/solv/internal/evr"
	"github.com/standardbeagle/solv/internal/repodata"
	"github.com/standardbeagle/solv/internal/types"
)

func TestNewInternsPreludeAtFixedIds(t *testing.T) {
	p := New(evr.DialectRPM)
	assert.Equal(t, types.SolvableName, p.Str2Id("solvable:name", false))
	assert.Equal(t, types.SolvableProvides, p.Str2Id("solvable:provides", false))
	assert.Equal(t, types.SolvableFileMarker, p.Str2Id("solvable:filemarker", false))
}

func TestNewReservesSentinelSolvables(t *testing.T) {
	p := New(evr.DialectRPM)
	require.Len(t, p.Solvables, 2)
	assert.Equal(t, -1, p.Solvables[0].Repo)
	assert.Equal(t, -1, p.Solvables[1].Repo)
}

func TestAddSolvableTracksRepoRange(t *testing.T) {
	p := New(evr.DialectRPM)
	r := p.AddRepo("test")
	idx := len(p.Repos) - 1

	s1 := p.AddSolvable(idx)
	s2 := p.AddSolvable(idx)

	assert.Equal(t, s1, r.Start)
	assert.Equal(t, s2+1, r.End)
}

func TestEnsureSelfProvidesAddsSelfProvide(t *testing.T) {
	p := New(evr.DialectRPM)
	idx := len(p.Repos)
	p.AddRepo("test")
	solvid := p.AddSolvable(idx)

	p.Solvables[solvid].Name = p.Str2Id("bash", true)
	p.Solvables[solvid].Evr = p.Str2Id("5.1-1", true)
	p.Solvables[solvid].Arch = p.Str2Id("x86_64", true)

	rd := repodata.New(solvid, solvid+1)
	p.EnsureSelfProvides(solvid, rd, types.SolvableProvides)
	require.NoError(t, rd.Internalize())

	ids, ok := rd.LookupIdArray(solvid, types.SolvableProvides)
	require.True(t, ok)
	require.Len(t, ids, 1)
	assert.True(t, ids[0].IsRel())

	rel := p.Rels.Get(ids[0])
	assert.Equal(t, p.Solvables[solvid].Name, rel.Name)
	assert.Equal(t, types.RelEQ, rel.Flags)
}

func TestEnsureSelfProvidesSkipsSourceArch(t *testing.T) {
	p := New(evr.DialectRPM)
	idx := len(p.Repos)
	p.AddRepo("test")
	solvid := p.AddSolvable(idx)
	p.Solvables[solvid].Arch = types.ArchSrc

	rd := repodata.New(solvid, solvid+1)
	p.EnsureSelfProvides(solvid, rd, types.SolvableProvides)
	require.NoError(t, rd.Internalize())

	_, ok := rd.LookupIdArray(solvid, types.SolvableProvides)
	assert.False(t, ok)
}

func TestCreateWhatProvidesIndexesByName(t *testing.T) {
	p := New(evr.DialectRPM)
	idx := len(p.Repos)
	p.AddRepo("test")
	solvid := p.AddSolvable(idx)

	name := p.Str2Id("libfoo", true)
	rel := p.Rel2Id(name, p.Str2Id("1.0", true), types.RelEQ, true)
	rd := repodata.New(solvid, solvid+1)
	rd.AddIdArray(solvid, types.SolvableProvides, []types.Id{rel}, false)
	require.NoError(t, rd.Internalize())

	p.CreateWhatProvides(map[int]*repodata.Repodata{solvid: rd}, types.SolvableProvides)

	got := p.WhatProvides(name)
	require.Len(t, got, 1)
	assert.Equal(t, solvid, got[0])
}

func TestInstallableRespectsArchScore(t *testing.T) {
	p := New(evr.DialectRPM)
	arch := p.Str2Id("x86_64", true)
	s := &Solvable{Arch: arch}

	assert.False(t, p.Installable(s))
	p.SetArchScore(arch, 100)
	assert.True(t, p.Installable(s))
}

func TestErrorfRecordsLastError(t *testing.T) {
	p := New(evr.DialectRPM)
	ret := p.Errorf(-1, "bad thing: %s", "oops")
	assert.Equal(t, -1, ret)
	assert.Equal(t, "bad thing: oops", p.LastError())
}

func TestDirPathJoinsComponents(t *testing.T) {
	p := New(evr.DialectRPM)
	usr := p.Dirs.AddDir(1, p.Str2Id("usr", true), true)
	bin := p.Dirs.AddDir(usr, p.Str2Id("bin", true), true)

	assert.Equal(t, "/usr/bin/", p.DirPath(types.Id(bin)))
}

func TestEvrCmpUsesConfiguredDialect(t *testing.T) {
	p := New(evr.DialectRPM)
	a := p.Str2Id("1.0-1", true)
	b := p.Str2Id("2.0-1", true)
	assert.True(t, p.EvrCmp(a, b, evr.ModeCompare) < 0)
	assert.Equal(t, 0, p.EvrCmp(a, a, evr.ModeCompare))
}
