package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/solv/internal/evr"
	"github.com/standardbeagle/solv/internal/pool"
	"github.com/standardbeagle/solv/internal/repodata"
	"github.com/standardbeagle/solv/internal/types"
	"github.com/standardbeagle/solv/internal/writer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func writeSampleSolv(t *testing.T, path string) {
	t.Helper()
	p := pool.New(evr.DialectRPM)
	p.AddRepo("repo")
	repoIdx := len(p.Repos) - 1
	solvid := p.AddSolvable(repoIdx)
	p.Solvables[solvid].Name = p.Str2Id("bash", true)
	p.Solvables[solvid].Evr = p.Str2Id("5.1-1", true)
	p.Solvables[solvid].Arch = p.Str2Id("x86_64", true)

	rd := repodata.New(solvid, solvid+1)
	p.EnsureSelfProvides(solvid, rd, types.SolvableProvides)
	require.NoError(t, rd.Internalize())

	w := writer.New(p, map[int]*repodata.Repodata{solvid: rd}, solvid, solvid+1)
	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestDialectForDefaultsToRPM(t *testing.T) {
	assert.Equal(t, evr.DialectRPM, dialectFor(""))
	assert.Equal(t, evr.DialectRPM, dialectFor("rpm"))
	assert.Equal(t, evr.DialectDebian, dialectFor("deb"))
	assert.Equal(t, evr.DialectAPK, dialectFor("apk"))
}

func TestDumpCommandReadsAndPrintsSolvFile(t *testing.T) {
	dir := t.TempDir()
	solvPath := filepath.Join(dir, "repo.solv")
	writeSampleSolv(t, solvPath)

	app := newApp()
	err := app.Run([]string{"solvdump", solvPath})
	require.NoError(t, err)
}

func TestDumpCommandRequiresAnArgument(t *testing.T) {
	app := newApp()
	err := app.Run([]string{"solvdump"})
	assert.Error(t, err)
}
