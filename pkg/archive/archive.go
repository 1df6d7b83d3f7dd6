// pkg/archive/archive.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package archive persists completed trajectories to a zstd-compressed
// stream of gob-encoded records, gob being this module's wire encoding
// elsewhere (pkg/util/rpc.go).
package archive

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/mmp/flightplan/pkg/trajectory"
)

// Record is one archived planning result: the trajectory itself plus
// the planner name and quality achieved, for later offline analysis.
type Record struct {
	Planner     string
	Quality     float32
	Trajectory  trajectory.Trajectory
}

// TrajectoryArchiver writes a sequence of Records to an underlying
// writer as a single zstd stream of gob-encoded records; Close must be
// called to flush the compressor.
type TrajectoryArchiver struct {
	zw  *zstd.Encoder
	enc *gob.Encoder
}

func NewTrajectoryArchiver(w io.Writer) (*TrajectoryArchiver, error) {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, fmt.Errorf("archive: failed to create zstd writer: %w", err)
	}
	return &TrajectoryArchiver{zw: zw, enc: gob.NewEncoder(zw)}, nil
}

func (a *TrajectoryArchiver) Write(r Record) error {
	if err := a.enc.Encode(r); err != nil {
		return fmt.Errorf("archive: failed to encode record: %w", err)
	}
	return nil
}

func (a *TrajectoryArchiver) Close() error {
	if err := a.zw.Close(); err != nil {
		return fmt.Errorf("archive: failed to close zstd writer: %w", err)
	}
	return nil
}

// Reader reads back a stream written by TrajectoryArchiver.
type Reader struct {
	zr  *zstd.Decoder
	dec *gob.Decoder
}

func NewReader(r io.Reader) (*Reader, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to create zstd reader: %w", err)
	}
	return &Reader{zr: zr, dec: gob.NewDecoder(zr)}, nil
}

// Next decodes the next Record, returning io.EOF when the stream is
// exhausted.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (r *Reader) Close() {
	r.zr.Close()
}
