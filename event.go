/*
NAME
  event.go

DESCRIPTION
  event.go decodes 'E' frame payloads into the discriminated event record
  the orchestrator hands to the event callback.

AUTHORS
  Mia Calder <mia@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package blackbox

import (
	"github.com/ausocean/blackbox/cursor"
	"github.com/ausocean/blackbox/varint"
)

// EventType discriminates the payload carried by an Event.
type EventType int

const (
	// EventInvalid marks an event whose on-wire ID this decoder does not
	// recognise; the frame itself still decodes successfully (§7, "soft"
	// errors).
	EventInvalid EventType = -1

	EventSyncBeep            EventType = 0
	EventAutotuneCycleStart  EventType = 10
	EventAutotuneCycleResult EventType = 11
)

// Event is the last-event record: a discriminated value carrying exactly
// one event type's payload. Fields irrelevant to Type are zero.
type Event struct {
	Type EventType

	// SYNC_BEEP
	Time uint32

	// AUTOTUNE_CYCLE_START
	Phase uint8
	Cycle uint8

	// AUTOTUNE_CYCLE_START and AUTOTUNE_CYCLE_RESULT share P/I/D.
	P uint8
	I uint8
	D uint8

	// AUTOTUNE_CYCLE_RESULT
	Overshot uint8
}

// decodeEvent reads one 'E' frame's payload: a single raw event-ID byte,
// followed by a type-specific fixed layout. An unrecognised ID yields
// EventInvalid with no further bytes consumed — the frame still counts as
// successfully decoded (the corrupt-frame path is never entered for this).
func decodeEvent(c *cursor.Cursor) (Event, error) {
	id, ok := c.Read()
	if !ok {
		return Event{}, errEventEOF
	}

	switch EventType(id) {
	case EventSyncBeep:
		t := varint.ReadUnsigned(c)
		return Event{Type: EventSyncBeep, Time: t}, nil

	case EventAutotuneCycleStart:
		b, err := readN(c, 5)
		if err != nil {
			return Event{}, err
		}
		return Event{
			Type:  EventAutotuneCycleStart,
			Phase: b[0], Cycle: b[1], P: b[2], I: b[3], D: b[4],
		}, nil

	case EventAutotuneCycleResult:
		b, err := readN(c, 4)
		if err != nil {
			return Event{}, err
		}
		return Event{
			Type:     EventAutotuneCycleResult,
			Overshot: b[0], P: b[1], I: b[2], D: b[3],
		}, nil

	default:
		return Event{Type: EventInvalid}, nil
	}
}

type eventEOFErr struct{}

func (eventEOFErr) Error() string { return "blackbox: unexpected end of data in event frame" }

var errEventEOF = eventEOFErr{}

// readN reads exactly n raw bytes from c.
func readN(c *cursor.Cursor, n int) ([]byte, error) {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b, ok := c.Read()
		if !ok {
			return nil, errEventEOF
		}
		out[i] = b
	}
	return out, nil
}
