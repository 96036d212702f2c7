package pdcom

import (
	"encoding/binary"
	"time"
)

// Distinguished ComIDs for the statistics-pull built-in (spec.md §6, §4.5
// step 4a). These must be fixed constants matching the reference deployment;
// confirmed against getStats.c's request/reply flow in original_source.
const (
	// StatisticsPullComID is the PR request target for global statistics.
	StatisticsPullComID uint32 = 31
	// GlobalStatisticsComID is the PP reply (and its subscription).
	GlobalStatisticsComID uint32 = 35
)

// statisticsWireSize is the marshalled size of Statistics: 4 uint32 fields in
// the envelope, 2 bytes + 1 uint32 default send params, 10 uint32 counters.
const statisticsWireSize = 4*4 + 1 + 1 + 4 + 10*4

// Statistics is the full session snapshot recovered from the original's
// TRDP_STATISTICS_T/TRDP_PD_STATISTICS_T (SPEC_FULL.md §4); spec.md §8 names
// only a subset of these counters, the rest is supplemented from
// original_source since it is what GLOBAL_STATISTICS_COMID actually carries
// on the wire.
type Statistics struct {
	// envelope
	Version      uint32
	UpTime       time.Duration
	OwnIPAddr    uint32
	ProcessCycle time.Duration

	// session defaults
	DefQos     uint8
	DefTtl     uint8
	DefTimeout time.Duration

	// PD counters
	NumSubs    uint32
	NumPub     uint32
	NumRcv     uint32
	NumCrcErr  uint32
	NumProtErr uint32
	NumTopoErr uint32
	NumNoSubs  uint32
	NumNoPub   uint32
	NumTimeout uint32
	NumSend    uint32
}

// Snapshot returns the session's current statistics, with the envelope
// fields (UpTime, OwnIPAddr, counts of linked elements) filled in live.
func (s *Session) Snapshot() Statistics {
	snap := s.Stats
	snap.Version = statisticsVersion
	snap.UpTime = s.UpTime()
	snap.OwnIPAddr = s.OwnIPAddr
	snap.NumSubs = uint32(s.RecvQueue.Len())
	snap.NumPub = uint32(s.SendQueue.Len())
	return snap
}

const statisticsVersion uint32 = 1

// Marshal writes the snapshot to buf in the same fixed-width, big-endian
// style as the PD header (spec.md §6), so it can be handed to Element.Put as
// the GLOBAL_STATISTICS_COMID payload.
func (st Statistics) Marshal(buf []byte) int {
	_ = buf[statisticsWireSize-1]

	i := 0
	putU32 := func(v uint32) { binary.BigEndian.PutUint32(buf[i:i+4], v); i += 4 }

	putU32(st.Version)
	putU32(uint32(st.UpTime.Seconds()))
	putU32(st.OwnIPAddr)
	putU32(uint32(st.ProcessCycle.Microseconds()))

	buf[i] = st.DefQos
	i++
	buf[i] = st.DefTtl
	i++
	putU32(uint32(st.DefTimeout.Milliseconds()))

	putU32(st.NumSubs)
	putU32(st.NumPub)
	putU32(st.NumRcv)
	putU32(st.NumCrcErr)
	putU32(st.NumProtErr)
	putU32(st.NumTopoErr)
	putU32(st.NumNoSubs)
	putU32(st.NumNoPub)
	putU32(st.NumTimeout)
	putU32(st.NumSend)

	return i
}

// UnmarshalStatistics reads back a snapshot Marshal produced, for the demo
// CLI's getStats-style pull (SPEC_FULL.md §4).
func UnmarshalStatistics(buf []byte) Statistics {
	_ = buf[statisticsWireSize-1]

	i := 0
	getU32 := func() uint32 { v := binary.BigEndian.Uint32(buf[i : i+4]); i += 4; return v }

	var st Statistics
	st.Version = getU32()
	st.UpTime = time.Duration(getU32()) * time.Second
	st.OwnIPAddr = getU32()
	st.ProcessCycle = time.Duration(getU32()) * time.Microsecond

	st.DefQos = buf[i]
	i++
	st.DefTtl = buf[i]
	i++
	st.DefTimeout = time.Duration(getU32()) * time.Millisecond

	st.NumSubs = getU32()
	st.NumPub = getU32()
	st.NumRcv = getU32()
	st.NumCrcErr = getU32()
	st.NumProtErr = getU32()
	st.NumTopoErr = getU32()
	st.NumNoSubs = getU32()
	st.NumNoPub = getU32()
	st.NumTimeout = getU32()
	st.NumSend = getU32()

	return st
}
