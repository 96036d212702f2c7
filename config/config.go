// Package config loads the demo CLI's optional batch publish/subscribe file.
package config

import (
	"fmt"
	"net"
	"time"

	"github.com/BurntSushi/toml"
)

// tomlConfig describes the batch-file's top-level layout.
type tomlConfig struct {
	Session    sessionConf
	Publish    []publishConf
	Subscribe  []subscribeConf
}

// sessionConf describes the Session-configuration block.
type sessionConf struct {
	OwnIpAddr    string `toml:"own-ip-addr"`
	EtbTopoCnt   uint32 `toml:"etb-topo-cnt"`
	OpTrnTopoCnt uint32 `toml:"op-trn-topo-cnt"`
	DefaultPort  uint16 `toml:"default-port"`
}

// publishConf describes one [[publish]] block.
type publishConf struct {
	ComId      uint32 `toml:"com-id"`
	DestIp     string `toml:"dest-ip"`
	McGroup    string `toml:"mc-group"`
	IntervalMs uint   `toml:"interval-ms"`
	Qos        uint8  `toml:"qos"`
	Ttl        uint8  `toml:"ttl"`
	Redundant  bool
	RedundantGrp uint32 `toml:"redundant-grp"`
}

// subscribeConf describes one [[subscribe]] block.
type subscribeConf struct {
	ComId      uint32 `toml:"com-id"`
	SrcIp      string `toml:"src-ip"`
	DestIp     string `toml:"dest-ip"`
	McGroup    string `toml:"mc-group"`
	IntervalMs uint   `toml:"interval-ms"`
	TimeoutMs  uint   `toml:"timeout-ms"`
	ForceCB    bool   `toml:"force-cb"`
}

// Session is the parsed, IP-resolved form of the Session-configuration block.
type Session struct {
	OwnIPAddr    uint32
	EtbTopoCnt   uint32
	OpTrnTopoCnt uint32
	DefaultPort  uint16
}

// Publish is the parsed, IP-resolved form of a [[publish]] block.
type Publish struct {
	ComID        uint32
	DestIP       uint32
	McGroup      uint32
	Interval     time.Duration
	QoS          uint8
	TTL          uint8
	Redundant    bool
	RedundantGrp uint32
}

// Subscribe is the parsed, IP-resolved form of a [[subscribe]] block.
type Subscribe struct {
	ComID    uint32
	SrcIP    uint32
	DestIP   uint32
	McGroup  uint32
	Interval time.Duration
	Timeout  time.Duration
	ForceCB  bool
}

// Batch is the fully parsed batch file, ready for the caller to build
// publisher and subscriber elements from.
type Batch struct {
	Session    Session
	Publishes  []Publish
	Subscribes []Subscribe
}

// Load parses a TOML batch file into a Batch, resolving every dotted-decimal
// address field to its uint32 wire form.
//
// Grounded on cmd/dtnd/configuration.go's tomlConfig block-struct pattern,
// adapted from convergence-layer listen/peer blocks to PD publish/subscribe
// blocks.
func Load(filename string) (Batch, error) {
	var raw tomlConfig
	if _, err := toml.DecodeFile(filename, &raw); err != nil {
		return Batch{}, err
	}

	ownIP, err := parseIPOrZero(raw.Session.OwnIpAddr)
	if err != nil {
		return Batch{}, err
	}

	batch := Batch{
		Session: Session{
			OwnIPAddr:    ownIP,
			EtbTopoCnt:   raw.Session.EtbTopoCnt,
			OpTrnTopoCnt: raw.Session.OpTrnTopoCnt,
			DefaultPort:  raw.Session.DefaultPort,
		},
	}

	for _, p := range raw.Publish {
		destIP, err := parseIPOrZero(p.DestIp)
		if err != nil {
			return Batch{}, err
		}
		mcGroup, err := parseIPOrZero(p.McGroup)
		if err != nil {
			return Batch{}, err
		}
		batch.Publishes = append(batch.Publishes, Publish{
			ComID:        p.ComId,
			DestIP:       destIP,
			McGroup:      mcGroup,
			Interval:     time.Duration(p.IntervalMs) * time.Millisecond,
			QoS:          p.Qos,
			TTL:          p.Ttl,
			Redundant:    p.Redundant,
			RedundantGrp: p.RedundantGrp,
		})
	}

	for _, sub := range raw.Subscribe {
		srcIP, err := parseIPOrZero(sub.SrcIp)
		if err != nil {
			return Batch{}, err
		}
		destIP, err := parseIPOrZero(sub.DestIp)
		if err != nil {
			return Batch{}, err
		}
		mcGroup, err := parseIPOrZero(sub.McGroup)
		if err != nil {
			return Batch{}, err
		}
		batch.Subscribes = append(batch.Subscribes, Subscribe{
			ComID:    sub.ComId,
			SrcIP:    srcIP,
			DestIP:   destIP,
			McGroup:  mcGroup,
			Interval: time.Duration(sub.IntervalMs) * time.Millisecond,
			Timeout:  time.Duration(sub.TimeoutMs) * time.Millisecond,
			ForceCB:  sub.ForceCB,
		})
	}

	return batch, nil
}

// parseIPOrZero parses a dotted-decimal IPv4 address, treating an empty
// string as the wildcard address 0 (spec.md's "0 means don't care" convention
// for destIP/srcIP/topology counters).
func parseIPOrZero(dotted string) (uint32, error) {
	if dotted == "" {
		return 0, nil
	}

	ip := net.ParseIP(dotted)
	if ip == nil {
		return 0, fmt.Errorf("config: invalid IPv4 address %q", dotted)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return 0, fmt.Errorf("config: %q is not an IPv4 address", dotted)
	}

	return uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3]), nil
}
