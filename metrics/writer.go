package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ConfigRecord is one search setup compared by an experiment.
type ConfigRecord struct {
	ID             int
	Goroutines     int
	Episodes       int
	Duration       time.Duration
	SolidThreshold int
	UseRENTS       bool
}

type GameRecord struct {
	ID     int
	Config int // ConfigRecord.ID, zero outside experiments
	GameMetric
}

type MoveRecord struct {
	Game int // GameRecord.ID
	MoveMetric
}

type Writer struct {
	baseDir string
}

// NewWriter creates a subfolder of dir named by the current timestamp.
func NewWriter(dir string) (*Writer, error) {
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	baseDir := filepath.Join(dir, timestamp)
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Writer{
		baseDir: baseDir,
	}, nil
}

func (w *Writer) Dir() string {
	return w.baseDir
}

func (w *Writer) WriteConfigRecords(records []ConfigRecord) error {
	header := []string{"id", "goroutines", "episodes", "duration", "solid_threshold", "use_rents"}
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			strconv.Itoa(record.ID),
			strconv.Itoa(record.Goroutines),
			strconv.Itoa(record.Episodes),
			record.Duration.String(),
			strconv.Itoa(record.SolidThreshold),
			strconv.FormatBool(record.UseRENTS),
		})
	}
	return w.write("config_records.csv", header, rows)
}

func (w *Writer) WriteGameRecords(records []GameRecord) error {
	header := []string{"id", "config", "seed", "result", "start_time", "end_time", "duration", "total_moves"}
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			strconv.Itoa(record.ID),
			strconv.Itoa(record.Config),
			strconv.FormatUint(record.Seed, 10),
			record.Result,
			record.StartTime.Format(time.RFC3339),
			record.EndTime.Format(time.RFC3339),
			record.Duration.String(),
			strconv.Itoa(record.TotalMoves),
		})
	}
	return w.write("game_records.csv", header, rows)
}

func (w *Writer) WriteMoveRecords(records []MoveRecord) error {
	header := []string{"game", "step", "black_to_move", "move", "goroutines", "duration", "episodes", "collisions", "solid_nodes", "root_visits", "is_tree_reused"}
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			strconv.Itoa(record.Game),
			strconv.Itoa(record.Step),
			strconv.FormatBool(record.BlackToMove),
			record.Move,
			strconv.Itoa(record.Goroutines),
			record.Duration.String(),
			strconv.Itoa(record.Episodes),
			strconv.Itoa(record.Collisions),
			strconv.Itoa(record.SolidNodes),
			strconv.Itoa(record.RootVisits),
			strconv.FormatBool(record.IsTreeReused),
		})
	}
	return w.write("move_records.csv", header, rows)
}

func (w *Writer) write(name string, header []string, rows [][]string) error {
	path := filepath.Join(w.baseDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)

	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write %s header: %w", name, err)
	}
	err = writer.WriteAll(rows)
	if err != nil {
		return fmt.Errorf("failed to write %s rows: %w", name, err)
	}
	return nil
}
