/*
NAME
  ring.go

DESCRIPTION
  ring.go implements the main-frame history ring: three physical slots of
  per-field values, addressed by rotating indices rather than copies, so
  that an intra frame can legitimately leave two of the three "logical"
  slots aliased to the same physical storage.

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

// mainRing holds the three backing arrays for main-frame field history and
// the rotating indices that label which physical slot is "current",
// "previous" and "previous-previous". Rotation only ever reassigns these
// indices; it never copies field data, so two logical slots can legitimately
// alias one physical array (see commitIntra).
type mainRing struct {
	slots       [3][]int32
	cur         int
	prev        int
	prev2       int
	haveHistory bool
}

// newMainRing allocates a ring with nFields per slot, all zeroed — the
// natural "no history yet" state that lets PREVIOUS/STRAIGHT_LINE/AVERAGE_2
// degrade to predicting 0 before any frame has been accepted.
func newMainRing(nFields int) mainRing {
	var r mainRing
	for i := range r.slots {
		r.slots[i] = make([]int32, nFields)
	}
	return r
}

// current returns the physical slot currently being decoded into.
func (r *mainRing) current() []int32 { return r.slots[r.cur] }

// previous returns the most recently accepted main frame's values. Until a
// frame has been accepted it is the same physical slot as current(), so it
// holds zeros only until a decode first writes into that slot.
func (r *mainRing) previous() []int32 { return r.slots[r.prev] }

// previous2 returns the main frame accepted before that one.
func (r *mainRing) previous2() []int32 { return r.slots[r.prev2] }

// commitIntra rotates the ring after an accepted I frame: both the
// previous and previous-previous slots alias the frame just decoded (the
// decoder cannot see further back than its own new reference), and the
// decode target advances to whichever physical slot is left over.
func (r *mainRing) commitIntra() {
	filled := r.cur
	r.prev, r.prev2 = filled, filled
	r.cur = otherSlot1(filled)
	r.haveHistory = true
}

// commitInter rotates the ring after an accepted P frame: the classic
// three-slot shift, previous-previous takes the old previous, previous
// takes the just-filled slot, and the decode target advances to the one
// physical slot not referenced by either.
func (r *mainRing) commitInter() {
	filled := r.cur
	r.prev2 = r.prev
	r.prev = filled
	r.cur = otherSlot2(r.prev, r.prev2)
	r.haveHistory = true
}

// otherSlot1 returns a slot index different from i; used when two of the
// three physical slots end up aliased, so any unaliased index serves as the
// next decode target.
func otherSlot1(i int) int {
	return (i + 1) % 3
}

// otherSlot2 returns the one slot index that is neither a nor b.
func otherSlot2(a, b int) int {
	for i := 0; i < 3; i++ {
		if i != a && i != b {
			return i
		}
	}
	return 0
}
