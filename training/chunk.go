package training

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Writer appends training records to a zstd compressed chunk file.
type Writer struct {
	f       *os.File
	encoder *zstd.Encoder
	count   int
}

func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk file: %w", err)
	}
	encoder, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &Writer{f: f, encoder: encoder}, nil
}

func (w *Writer) Write(data *V5TrainingData) error {
	err := binary.Write(w.encoder, binary.LittleEndian, data)
	if err != nil {
		return fmt.Errorf("failed to write training record: %w", err)
	}
	w.count++
	return nil
}

// Count is the number of records written so far.
func (w *Writer) Count() int {
	return w.count
}

func (w *Writer) Close() error {
	if err := w.encoder.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("failed to flush zstd encoder: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("failed to close chunk file: %w", err)
	}
	return nil
}

// Reader reads the records of a chunk file written by Writer.
type Reader struct {
	f       *os.File
	decoder *zstd.Decoder
}

func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk file: %w", err)
	}
	decoder, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Reader{f: f, decoder: decoder}, nil
}

// Read returns the next record, or io.EOF after the last one.
func (r *Reader) Read() (*V5TrainingData, error) {
	data := &V5TrainingData{}
	err := binary.Read(r.decoder, binary.LittleEndian, data)
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read training record: %w", err)
	}
	return data, nil
}

func (r *Reader) Close() error {
	r.decoder.Close()
	return r.f.Close()
}
