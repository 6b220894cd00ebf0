/*
NAME
  stats.go

DESCRIPTION
  stats.go accumulates per-field and per-frame-type decode statistics as a
  log is processed, and summarises field value distributions using gonum's
  stat package.

AUTHORS
  Mia Calder <mia@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package stats accumulates decode-time statistics across a blackbox log:
// per-field value ranges, per-frame-type byte/validity counts, and frame
// size histograms, plus a gonum-backed numerical summary on request.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// FieldStats tracks the observed minimum and maximum of one field's decoded
// values, signedness-aware: a signed field's values are compared as int32,
// an unsigned field's as uint32 (so a value with the top bit set ranks above
// every value without it).
type FieldStats struct {
	Signed  bool
	Min     int32
	Max     int32
	Count   int64
	retain  bool
	samples []float64
}

// Observe folds v into the running min/max. It also retains v for Summary,
// but only once the owning Collector's Retain(true) has been called —
// min/max/count tracking is unconditional and free; keeping every sample is
// an opt-in for callers that actually want Summary's mean/stddev.
func (f *FieldStats) Observe(v int32) {
	if f.Count == 0 {
		f.Min, f.Max = v, v
	} else if f.Signed {
		if v < f.Min {
			f.Min = v
		}
		if v > f.Max {
			f.Max = v
		}
	} else {
		if uint32(v) < uint32(f.Min) {
			f.Min = v
		}
		if uint32(v) > uint32(f.Max) {
			f.Max = v
		}
	}
	f.Count++
	if f.retain {
		f.samples = append(f.samples, float64(v))
	}
}

// Summary is a numerical description of a field's observed distribution.
type Summary struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summary computes the mean and standard deviation of the samples Observe
// retained while retention was enabled, using gonum/stat; Min and Max are
// the live values over every observation. It returns the zero Summary if no
// samples have been retained.
func (f *FieldStats) Summary() Summary {
	if len(f.samples) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(f.samples, nil)
	return Summary{
		Mean:   mean,
		StdDev: std,
		Min:    float64(f.Min),
		Max:    float64(f.Max),
	}
}

// FrameTypeStats accumulates per-frame-type counters across a decode pass.
type FrameTypeStats struct {
	Bytes      int64
	Valid      int64
	Corrupt    int64
	Desync     int64
	sizeCounts map[int]int64
}

// RecordValid accounts for a successfully decoded frame of the given
// on-wire size in bytes.
func (s *FrameTypeStats) RecordValid(size int) {
	s.Bytes += int64(size)
	s.Valid++
	s.recordSize(size)
}

// RecordCorrupt accounts for a frame that failed validation.
func (s *FrameTypeStats) RecordCorrupt(size int) {
	s.Bytes += int64(size)
	s.Corrupt++
	s.recordSize(size)
}

// RecordDesync accounts for bytes skipped while resynchronising after a
// corrupt or unrecognised frame: it adds size to Bytes and increments
// Desync, leaving Valid, Corrupt and the size histogram unchanged.
func (s *FrameTypeStats) RecordDesync(size int) {
	s.Bytes += int64(size)
	s.Desync++
}

func (s *FrameTypeStats) recordSize(size int) {
	if s.sizeCounts == nil {
		s.sizeCounts = make(map[int]int64)
	}
	s.sizeCounts[size]++
}

// SizeHistogram returns the observed frame-size distribution as parallel
// sorted-by-size slices of (size, count) pairs.
func (s *FrameTypeStats) SizeHistogram() (sizes []int, counts []int64) {
	sizes = make([]int, 0, len(s.sizeCounts))
	for sz := range s.sizeCounts {
		sizes = append(sizes, sz)
	}
	sort.Ints(sizes)
	counts = make([]int64, len(sizes))
	for i, sz := range sizes {
		counts[i] = s.sizeCounts[sz]
	}
	return sizes, counts
}

// Collector is the top-level statistics accumulator for one decode pass: a
// FieldStats per main-frame field plus a FrameTypeStats per frame marker.
type Collector struct {
	Fields     []*FieldStats
	FrameTypes map[byte]*FrameTypeStats

	// IntentionallyAbsentIterations accumulates the skipped-frame count
	// computed for every accepted P frame: the number of main-frame
	// iterations the P-frame cadence rate-limited away before that frame,
	// as opposed to an iteration genuinely lost to corruption.
	IntentionallyAbsentIterations int64
}

// NewCollector returns a Collector with nFields field slots, each defaulting
// to unsigned; callers set Signed per field before decoding begins.
func NewCollector(nFields int) *Collector {
	c := &Collector{
		Fields:     make([]*FieldStats, nFields),
		FrameTypes: make(map[byte]*FrameTypeStats),
	}
	for i := range c.Fields {
		c.Fields[i] = &FieldStats{}
	}
	return c
}

// Retain toggles whether every field's decoded samples are kept for Summary.
// Disabled by default: a long capture's per-field sample slices are the only
// part of Collector whose memory scales with frame count rather than field
// count, so callers that only need live min/max/count (the §4.10 contract)
// pay nothing for it.
func (c *Collector) Retain(enable bool) {
	for _, f := range c.Fields {
		f.retain = enable
	}
}

// FrameType returns (creating if necessary) the FrameTypeStats for marker.
func (c *Collector) FrameType(marker byte) *FrameTypeStats {
	ft, ok := c.FrameTypes[marker]
	if !ok {
		ft = &FrameTypeStats{}
		c.FrameTypes[marker] = ft
	}
	return ft
}

// TotalFrames returns the sum of valid frames recorded across every frame
// type, used for top-level progress/summary reporting.
func (c *Collector) TotalFrames() int64 {
	var total int64
	for _, ft := range c.FrameTypes {
		total += ft.Valid
	}
	return total
}

// TotalBytes returns the sum of on-wire bytes (valid and corrupt) recorded
// across every frame type, the §4.10 totalBytes statistic.
func (c *Collector) TotalBytes() int64 {
	var total int64
	for _, ft := range c.FrameTypes {
		total += ft.Bytes
	}
	return total
}

// TotalCorruptFrames returns the sum of corrupt frames recorded across
// every frame type, the §4.10 totalCorruptFrames statistic.
func (c *Collector) TotalCorruptFrames() int64 {
	var total int64
	for _, ft := range c.FrameTypes {
		total += ft.Corrupt
	}
	return total
}

// CorruptionRate returns the fraction, in [0,1], of frames (valid+corrupt)
// that were corrupt, across all frame types. It returns 0 if no frames at
// all were seen, rather than NaN.
func (c *Collector) CorruptionRate() float64 {
	var valid, corrupt int64
	for _, ft := range c.FrameTypes {
		valid += ft.Valid
		corrupt += ft.Corrupt
	}
	if valid+corrupt == 0 {
		return 0
	}
	rate := float64(corrupt) / float64(valid+corrupt)
	if math.IsNaN(rate) {
		return 0
	}
	return rate
}
