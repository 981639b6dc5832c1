package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/san-kum/rkode/internal/dynamo"
	"github.com/san-kum/rkode/internal/sim"
)

var ErrRunNotFound = errors.New("run not found")

const (
	metadataFile    = "metadata.json"
	statesFile      = "states.csv"
	diagnosticsFile = "diagnostics.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Method     string             `json:"method"`
	Timestamp  time.Time          `json:"timestamp"`
	T0         float64            `json:"t0"`
	Tf         float64            `json:"tf"`
	N          int                `json:"n"`
	Adaptive   bool               `json:"adaptive"`
	X0         []float64          `json:"x0"`
	Tolerances dynamo.Tolerances  `json:"tolerances"`
	Params     map[string]any     `json:"params,omitempty"`
	Stats      sim.Stats          `json:"stats"`
	Metrics    map[string]float64 `json:"metrics"`
	// Error is set when the run stopped before tf.
	Error string `json:"error,omitempty"`
}

// Diagnostics are the controller series of a stored run.
type Diagnostics struct {
	DT []float64   `json:"dt"`
	R  []float64   `json:"r"`
	E  [][]float64 `json:"e"`
}

// Save stores result under a new run ID. ID, Timestamp, Method, Adaptive,
// Stats and Metrics of meta are filled from the result.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	meta.ID = xid.New().String()
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	meta.Method = result.Method
	meta.Adaptive = result.Adaptive
	meta.Stats = result.Stats
	meta.Metrics = result.Metrics

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeRun(runDir, meta, result); err != nil {
		os.RemoveAll(runDir)
		return "", fmt.Errorf("save run %s: %w", meta.ID, err)
	}
	return meta.ID, nil
}

func writeRun(runDir string, meta RunMetadata, result *sim.Result) error {
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(runDir, statesFile), stateRows(result)); err != nil {
		return err
	}
	return writeCSV(filepath.Join(runDir, diagnosticsFile), diagnosticRows(result.History))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func stateRows(result *sim.Result) [][]string {
	if len(result.X) == 0 {
		return nil
	}

	header := []string{"time"}
	for i := range result.X[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}

	rows := [][]string{header}
	for i, x := range result.X {
		row := []string{formatFloat(result.T[i])}
		for _, val := range x {
			row = append(row, formatFloat(val))
		}
		rows = append(rows, row)
	}
	return rows
}

func diagnosticRows(h *sim.History) [][]string {
	rows := [][]string{{"series", "index", "value"}}
	if h == nil {
		return rows
	}

	for i, v := range h.DT() {
		rows = append(rows, []string{"dt", strconv.Itoa(i), formatFloat(v)})
	}
	for i, v := range h.R() {
		rows = append(rows, []string{"r", strconv.Itoa(i), formatFloat(v)})
	}
	for i, e := range h.E() {
		row := []string{"e", strconv.Itoa(i)}
		for _, v := range e {
			row = append(row, formatFloat(v))
		}
		rows = append(rows, row)
	}
	return rows
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns the stored runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	slices.SortFunc(runs, func(a, b RunMetadata) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return runs, nil
}

// runDir resolves runID, which must be a run ID issued by Save.
func (s *Store) runDir(runID string) (string, error) {
	if _, err := xid.FromString(runID); err != nil {
		return "", fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}
	return filepath.Join(s.baseDir, runID), nil
}

func (s *Store) open(runID, name string) (*os.File, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return f, err
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	f, err := s.open(runID, metadataFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var meta RunMetadata
	if err := json.NewDecoder(f).Decode(&meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) readCSV(runID, name string) ([][]string, error) {
	f, err := s.open(runID, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func (s *Store) LoadStates(runID string) ([]dynamo.State, []float64, error) {
	records, err := s.readCSV(runID, statesFile)
	if err != nil {
		return nil, nil, err
	}

	if len(records) < 2 {
		return []dynamo.State{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	states := make([]dynamo.State, 0, len(records)-1)

	for i, record := range records[1:] {
		vals, err := parseFloats(record)
		if err != nil {
			return nil, nil, fmt.Errorf("run %s: %s line %d: %w", runID, statesFile, i+2, err)
		}
		if len(vals) == 0 {
			continue
		}
		times = append(times, vals[0])
		states = append(states, dynamo.State(vals[1:]))
	}

	return states, times, nil
}

func (s *Store) LoadDiagnostics(runID string) (*Diagnostics, error) {
	records, err := s.readCSV(runID, diagnosticsFile)
	if err != nil {
		return nil, err
	}

	d := &Diagnostics{DT: []float64{}, R: []float64{}, E: [][]float64{}}
	for i, record := range records {
		if i == 0 || len(record) < 2 {
			continue
		}
		vals, err := parseFloats(record[2:])
		if err != nil {
			return nil, fmt.Errorf("run %s: %s line %d: %w", runID, diagnosticsFile, i+1, err)
		}

		switch record[0] {
		case "dt":
			d.DT = append(d.DT, vals...)
		case "r":
			d.R = append(d.R, vals...)
		case "e":
			d.E = append(d.E, vals)
		}
	}
	return d, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type ExportData struct {
	RunMetadata
	Steps       int          `json:"steps"`
	Times       []float64    `json:"times"`
	States      [][]float64  `json:"states"`
	Diagnostics *Diagnostics `json:"diagnostics"`
}

// ExportJSON writes a stored run as a single JSON document.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	states, times, err := s.LoadStates(runID)
	if err != nil {
		return err
	}
	diag, err := s.LoadDiagnostics(runID)
	if err != nil {
		return err
	}

	data := ExportData{
		RunMetadata: *meta,
		Steps:       len(times),
		Times:       times,
		States:      make([][]float64, len(states)),
		Diagnostics: diag,
	}
	for i, st := range states {
		data.States[i] = st
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
