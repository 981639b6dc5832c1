package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/rkode/internal/dynamo"
	"github.com/san-kum/rkode/internal/sim"
	"github.com/san-kum/rkode/internal/tableau"
)

func decayResult(t *testing.T) *sim.Result {
	t.Helper()
	f := func(_ float64, x dynamo.State, _ struct{}) (dynamo.State, error) { return x.Scale(-1), nil }

	cfg := dynamo.DefaultConfig()
	cfg.Adaptive = true
	res, err := sim.New[struct{}](tableau.DormandPrince54()).Integrate(context.Background(),
		sim.Problem[struct{}]{F: f, Tf: 10, N: 1, X0: dynamo.State{1, 2}}, cfg)
	require.NoError(t, err)
	res.Metrics["max_norm"] = 2
	return res
}

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "runs")
	st := New(dir)
	require.NoError(t, st.Init())
	return st, dir
}

func TestStoreSaveLoad(t *testing.T) {
	st, _ := newStore(t)
	res := decayResult(t)

	runID, err := st.Save(RunMetadata{
		Model:      "decay",
		Tf:         10,
		N:          1,
		X0:         []float64{1, 2},
		Tolerances: dynamo.DefaultTolerances(),
		Params:     map[string]any{"rate": 1.0},
	}, res)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	meta, err := st.Load(runID)
	require.NoError(t, err)

	assert.Equal(t, runID, meta.ID)
	assert.Equal(t, "decay", meta.Model)
	assert.Equal(t, "dopri54", meta.Method)
	assert.True(t, meta.Adaptive)
	assert.Equal(t, res.Stats, meta.Stats)
	assert.Equal(t, dynamo.DefaultTolerances(), meta.Tolerances)
	assert.Equal(t, 2.0, meta.Metrics["max_norm"])
	assert.Equal(t, 1.0, meta.Params["rate"])
	assert.WithinDuration(t, time.Now(), meta.Timestamp, time.Minute)
}

func TestStoreStatesRoundTripExactly(t *testing.T) {
	st, _ := newStore(t)
	res := decayResult(t)

	runID, err := st.Save(RunMetadata{Model: "decay"}, res)
	require.NoError(t, err)

	states, times, err := st.LoadStates(runID)
	require.NoError(t, err)

	assert.Equal(t, res.T, times)
	assert.Equal(t, res.X, states)
}

func TestStoreDiagnostics(t *testing.T) {
	st, _ := newStore(t)
	res := decayResult(t)

	runID, err := st.Save(RunMetadata{Model: "decay"}, res)
	require.NoError(t, err)

	diag, err := st.LoadDiagnostics(runID)
	require.NoError(t, err)

	assert.Equal(t, res.History.DT(), diag.DT)
	assert.Equal(t, res.History.R(), diag.R)
	require.Len(t, diag.E, len(res.History.E()))
	for i, e := range res.History.E() {
		assert.Equal(t, []float64(e), diag.E[i])
	}
}

func TestStoreList(t *testing.T) {
	st, dir := newStore(t)

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	res := decayResult(t)
	older, err := st.Save(RunMetadata{Model: "decay", Timestamp: time.Now().Add(-time.Hour)}, res)
	require.NoError(t, err)
	newer, err := st.Save(RunMetadata{Model: "lorenz"}, res)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "not-a-run"), 0755))

	runs, err = st.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer, runs[0].ID)
	assert.Equal(t, older, runs[1].ID)
}

func TestStoreListMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "absent"))
	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStoreFileStructure(t *testing.T) {
	st, dir := newStore(t)

	runID, err := st.Save(RunMetadata{Model: "decay"}, decayResult(t))
	require.NoError(t, err)

	for _, name := range []string{"metadata.json", "states.csv", "diagnostics.csv"} {
		assert.FileExists(t, filepath.Join(dir, runID, name))
	}
}

func TestStoreNotFound(t *testing.T) {
	st, _ := newStore(t)

	_, err := st.Load("cv37img5tppgl4002kb0")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, _, err = st.LoadStates("../../etc")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = st.LoadDiagnostics("")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestExportJSON(t *testing.T) {
	st, _ := newStore(t)
	res := decayResult(t)

	runID, err := st.Save(RunMetadata{Model: "decay", Tf: 10}, res)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, st.ExportJSON(&buf, runID))

	var data ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))

	assert.Equal(t, runID, data.ID)
	assert.Equal(t, "decay", data.Model)
	assert.Equal(t, len(res.T), data.Steps)
	assert.Equal(t, res.T, data.Times)
	assert.Len(t, data.States, len(res.X))
	assert.Equal(t, res.History.DT(), data.Diagnostics.DT)
}

func TestStoreSaveRemovesPartialRun(t *testing.T) {
	st, dir := newStore(t)
	res := decayResult(t)
	res.Metrics["energy_drift"] = math.NaN()

	runID, err := st.Save(RunMetadata{Model: "decay", Tf: 10, N: 1}, res)
	require.Error(t, err)
	assert.Empty(t, runID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}
