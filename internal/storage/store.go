package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/verletsim/internal/config"
	"github.com/san-kum/verletsim/internal/sim"
	"github.com/san-kum/verletsim/internal/verlet"
)

const (
	metadataFile  = "metadata.json"
	configFile    = "config.yaml"
	framesFile    = "frames.csv"
	particlesFile = "particles.csv"
)

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Timestamp      time.Time          `json:"timestamp"`
	Seed           int64              `json:"seed"`
	Dt             float64            `json:"dt"`
	Frames         int                `json:"frames"`
	Substeps       int                `json:"substeps"`
	Iterations     int                `json:"iterations"`
	Solver         string             `json:"solver"`
	Broadphase     string             `json:"broadphase"`
	Boundary       string             `json:"boundary"`
	Particles      int                `json:"particles"`
	TicksPerSecond float64            `json:"ticks_per_second"`
	Metrics        map[string]float64 `json:"metrics"`
	Errors         []string           `json:"errors,omitempty"`
}

// ParticleRow is one line of particles.csv.
type ParticleRow struct {
	Index  int     `csv:"index"`
	X      float64 `csv:"x"`
	Y      float64 `csv:"y"`
	PrevX  float64 `csv:"prev_x"`
	PrevY  float64 `csv:"prev_y"`
	Radius float64 `csv:"radius"`
}

func (p ParticleRow) Particle() verlet.Particle {
	return verlet.Particle{
		Position: r2.Vec{X: p.X, Y: p.Y},
		Previous: r2.Vec{X: p.PrevX, Y: p.PrevY},
		Radius:   p.Radius,
	}
}

// Save writes a run directory holding metadata.json, config.yaml,
// frames.csv and particles.csv, and returns its ID.
func (s *Store) Save(cfg *config.Config, result *sim.Result) (string, error) {
	ts := s.now()
	runID, runDir, err := s.makeRunDir(cfg.Name, ts)
	if err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:             runID,
		Name:           cfg.Name,
		Timestamp:      ts,
		Seed:           cfg.Seed,
		Dt:             cfg.Dt,
		Frames:         result.StepsTaken,
		Substeps:       cfg.Physics.Substeps,
		Iterations:     cfg.Physics.Iterations,
		Solver:         cfg.Physics.Solver,
		Broadphase:     cfg.Physics.Broadphase,
		Boundary:       cfg.Boundary.Shape,
		Particles:      len(result.Particles),
		TicksPerSecond: result.Perf.TicksPerSecond,
		Metrics:        result.Metrics,
	}
	for _, e := range result.Errors {
		meta.Errors = append(meta.Errors, e.Error())
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}

	frames := result.Frames
	if frames == nil {
		frames = []sim.FrameStats{}
	}
	if err := writeCSV(filepath.Join(runDir, framesFile), &frames); err != nil {
		return "", err
	}

	rows := make([]ParticleRow, len(result.Particles))
	for i, p := range result.Particles {
		rows[i] = ParticleRow{
			Index:  i,
			X:      p.Position.X,
			Y:      p.Position.Y,
			PrevX:  p.Previous.X,
			PrevY:  p.Previous.Y,
			Radius: p.Radius,
		}
	}
	if err := writeCSV(filepath.Join(runDir, particlesFile), &rows); err != nil {
		return "", err
	}

	return runID, nil
}

func (s *Store) makeRunDir(name string, ts time.Time) (string, string, error) {
	if err := s.Init(); err != nil {
		return "", "", err
	}
	base := fmt.Sprintf("%s_%d", name, ts.Unix())
	runID := base
	for i := 1; ; i++ {
		runDir := filepath.Join(s.baseDir, runID)
		err := os.Mkdir(runDir, 0755)
		if err == nil {
			return runID, runDir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", err
		}
		runID = fmt.Sprintf("%s_%d", base, i)
	}
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(path string, records any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(records, f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func readCSV(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gocsv.Unmarshal(f, out); err != nil && !errors.Is(err, gocsv.ErrEmptyCSVFile) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return nil
}

// List returns the metadata of every stored run, newest first.
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

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadConfig returns the configuration a run was made with.
func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.baseDir, runID, configFile))
}

func (s *Store) LoadFrames(runID string) ([]sim.FrameStats, error) {
	frames := []sim.FrameStats{}
	if err := readCSV(filepath.Join(s.baseDir, runID, framesFile), &frames); err != nil {
		return nil, err
	}
	return frames, nil
}

func (s *Store) LoadParticles(runID string) ([]verlet.Particle, error) {
	rows := []ParticleRow{}
	if err := readCSV(filepath.Join(s.baseDir, runID, particlesFile), &rows); err != nil {
		return nil, err
	}
	ps := make([]verlet.Particle, len(rows))
	for i, row := range rows {
		ps[i] = row.Particle()
	}
	return ps, nil
}
