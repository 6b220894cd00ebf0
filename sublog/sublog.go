/*
NAME
  sublog.go

DESCRIPTION
  sublog.go indexes the sub-log boundaries within a single blackbox capture
  file: several independent logs, one per arm/disarm cycle, are often
  concatenated back to back with a literal marker line between them.

AUTHORS
  Mia Calder <mia@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package sublog locates the boundaries between concatenated sub-logs in a
// raw blackbox capture.
package sublog

import "bytes"

// marker is the literal byte sequence the firmware writes at the start of
// each sub-log, including the very first.
var marker = []byte("H Product:Blackbox flight data recorder by Nicholas Sherlock\n")

// MaxLogsInFile bounds the number of sub-logs a single capture may be split
// into; any further marker occurrences are ignored and folded into the
// final sub-log.
const MaxLogsInFile = 128

// Index records the byte-offset bounds of every sub-log found in a buffer.
type Index struct {
	bounds []int // start offsets, one per sub-log, ascending.
	total  int   // length of the indexed buffer.
}

// Build scans buf for sub-log start markers and returns an Index describing
// them. A buffer with no marker at all yields a single sub-log spanning the
// whole buffer, matching the common case of a capture with a truncated or
// missing leading header.
func Build(buf []byte) *Index {
	idx := &Index{total: len(buf)}
	off := 0
	for len(idx.bounds) < MaxLogsInFile {
		i := bytes.Index(buf[off:], marker)
		if i < 0 {
			break
		}
		idx.bounds = append(idx.bounds, off+i)
		off = off + i + len(marker)
	}
	if len(idx.bounds) == 0 || idx.bounds[0] != 0 {
		idx.bounds = append([]int{0}, idx.bounds...)
	}
	return idx
}

// Count returns the number of sub-logs found.
func (idx *Index) Count() int {
	return len(idx.bounds)
}

// Bounds returns the half-open byte range [start, end) of sub-log i.
func (idx *Index) Bounds(i int) (start, end int) {
	start = idx.bounds[i]
	if i+1 < len(idx.bounds) {
		end = idx.bounds[i+1]
	} else {
		end = idx.total
	}
	return start, end
}
