// Command trdpdemo exercises the PD engine over real UDP sockets.
//
// With no -c flag it reproduces the reference getStats tool (spec.md §8
// scenario 1): subscribe to the global statistics ComID, pull once from -t,
// print the snapshot, and exit. With -c it loads a batch publish/subscribe
// file instead and runs the engine continuously, optionally serving the
// debug HTTP/WS surface.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mikajuvonen67/tcnopen/config"
	"github.com/mikajuvonen67/tcnopen/pdcom"
	"github.com/mikajuvonen67/tcnopen/pdqueue"
	"github.com/mikajuvonen67/tcnopen/transport"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "trdpdemo %s\n\n", version)
	fmt.Fprintln(os.Stderr, "Requests the general statistics from an ED, or runs a batch-file session.")
	fmt.Fprintln(os.Stderr, "Arguments:")
	flag.PrintDefaults()
}

func main() {
	var (
		ownIP    = flag.String("o", "", "own IP address in dotted decimal")
		replyIP  = flag.String("r", "", "reply IP address in dotted decimal")
		destIP   = flag.String("t", "", "target IP address in dotted decimal")
		showVer  = flag.Bool("v", false, "print version and quit")
		batchCfg = flag.String("c", "", "batch publish/subscribe TOML file")
		httpAddr = flag.String("http", "", "debug HTTP/WS listen address, e.g. :8080 (requires -c)")
	)
	flag.Usage = usage
	flag.Parse()

	if *showVer {
		fmt.Println(version)
		return
	}

	if *batchCfg != "" {
		runBatch(*batchCfg, *httpAddr)
		return
	}

	runGetStats(*ownIP, *replyIP, *destIP)
}

func parseIP(dotted string) uint32 {
	if dotted == "" {
		return 0
	}
	ip := net.ParseIP(dotted).To4()
	if ip == nil {
		log.Fatalf("invalid IPv4 address %q", dotted)
	}
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

// runGetStats reproduces getStats.c: subscribe to the global statistics
// ComID, issue one PULL request to destIP, print the reply, and exit.
func runGetStats(ownIPStr, replyIPStr, destIPStr string) {
	if destIPStr == "" {
		usage()
		os.Exit(1)
	}

	session := pdcom.NewSession(0, 0, parseIP(ownIPStr), transport.NewUDPTransport(), 17224)

	sockIdx, err := session.BindSocket(0, 17224, 0)
	if err != nil {
		log.WithError(err).Fatal("failed to bind listening socket")
	}

	done := make(chan struct{})
	cb := printStatsOnce{done: done}

	sub := pdqueue.NewSubscriber(pdqueue.AddressTuple{
		ComID:  pdcom.GlobalStatisticsComID,
		DestIP: parseIP(replyIPStr),
	}, 0, 10*time.Second, pdqueue.FlagCallback)
	sub.SocketIdx = sockIdx
	sub.Callback = cb
	session.RecvQueue.Insert(sub)

	pr := pdqueue.NewPullRequest(pdqueue.AddressTuple{ComID: pdcom.StatisticsPullComID, DestIP: parseIP(destIPStr)}, pdcom.GlobalStatisticsComID, parseIP(replyIPStr))
	pr.SocketIdx = sockIdx
	session.AddSocketRef(sockIdx)
	session.SendQueue.Insert(pr)

	stop := make(chan struct{})
	go session.Run(stop, 5*time.Second)

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warn("timed out waiting for a statistics reply")
	}
	close(stop)
}

// printStatsOnce implements pdqueue.Callback, printing the first accepted
// frame's statistics snapshot and closing done.
type printStatsOnce struct {
	done chan struct{}
}

func (p printStatsOnce) OnPdEvent(info pdqueue.PdInfo, payload []byte) {
	if info.ResultCode != nil {
		log.WithError(info.ResultCode).Warn("error receiving statistics")
		return
	}
	if len(payload) == 0 {
		return
	}

	snap := pdcom.UnmarshalStatistics(payload)
	fmt.Printf("--------------------\n")
	fmt.Printf("version:       %d\n", snap.Version)
	fmt.Printf("upTime:        %v\n", snap.UpTime)
	fmt.Printf("ownIpAddr:     %d.%d.%d.%d\n",
		byte(snap.OwnIPAddr>>24), byte(snap.OwnIPAddr>>16), byte(snap.OwnIPAddr>>8), byte(snap.OwnIPAddr))
	fmt.Printf("pd.numSubs:    %d\n", snap.NumSubs)
	fmt.Printf("pd.numPub:     %d\n", snap.NumPub)
	fmt.Printf("pd.numRcv:     %d\n", snap.NumRcv)
	fmt.Printf("pd.numCrcErr:  %d\n", snap.NumCrcErr)
	fmt.Printf("pd.numProtErr: %d\n", snap.NumProtErr)
	fmt.Printf("pd.numTopoErr: %d\n", snap.NumTopoErr)
	fmt.Printf("pd.numNoSubs:  %d\n", snap.NumNoSubs)
	fmt.Printf("pd.numNoPub:   %d\n", snap.NumNoPub)
	fmt.Printf("pd.numTimeout: %d\n", snap.NumTimeout)
	fmt.Printf("pd.numSend:    %d\n", snap.NumSend)
	fmt.Printf("--------------------\n")

	close(p.done)
}

// runBatch loads a config.Batch, builds the session's publishers and
// subscribers from it, and runs the engine until interrupted.
func runBatch(path, httpAddr string) {
	batch, err := config.Load(path)
	if err != nil {
		log.WithError(err).Fatal("failed to load batch file")
	}

	session := pdcom.NewSession(batch.Session.EtbTopoCnt, batch.Session.OpTrnTopoCnt, batch.Session.OwnIPAddr, transport.NewUDPTransport(), batch.Session.DefaultPort)

	for _, p := range batch.Publishes {
		flags := pdqueue.FlagDefault
		if p.Redundant {
			flags |= pdqueue.FlagRedundant
		}

		addr := pdqueue.AddressTuple{
			ComID:        p.ComID,
			EtbTopoCnt:   batch.Session.EtbTopoCnt,
			OpTrnTopoCnt: batch.Session.OpTrnTopoCnt,
			DestIP:       p.DestIP,
			McGroup:      p.McGroup,
			QoS:          p.QoS,
			TTL:          p.TTL,
		}
		pub := pdqueue.NewPublisher(addr, p.Interval, flags)
		pub.RedundantGrp = p.RedundantGrp

		idx, err := session.BindSocket(batch.Session.OwnIPAddr, batch.Session.DefaultPort, p.McGroup)
		if err != nil {
			log.WithError(err).WithField("comId", p.ComID).Fatal("failed to bind publisher socket")
		}
		pub.SocketIdx = idx
		session.SendQueue.Insert(pub)
	}

	for _, sc := range batch.Subscribes {
		flags := pdqueue.FlagDefault
		if sc.ForceCB {
			flags |= pdqueue.FlagCallback | pdqueue.FlagForceCB
		}

		addr := pdqueue.AddressTuple{
			ComID:        sc.ComID,
			EtbTopoCnt:   batch.Session.EtbTopoCnt,
			OpTrnTopoCnt: batch.Session.OpTrnTopoCnt,
			SrcIP:        sc.SrcIP,
			DestIP:       sc.DestIP,
			McGroup:      sc.McGroup,
		}
		sub := pdqueue.NewSubscriber(addr, sc.Interval, sc.Timeout, flags)

		idx, err := session.BindSocket(batch.Session.OwnIPAddr, batch.Session.DefaultPort, sc.McGroup)
		if err != nil {
			log.WithError(err).WithField("comId", sc.ComID).Fatal("failed to bind subscriber socket")
		}
		sub.SocketIdx = idx
		session.RecvQueue.Insert(sub)
	}

	pdcom.Distribute(session.SendQueue)

	if httpAddr != "" {
		go serveDebug(httpAddr, session)
	}

	stop := make(chan struct{})
	go waitSigint(stop)

	log.WithField("publishes", len(batch.Publishes)).WithField("subscribes", len(batch.Subscribes)).Info("trdpdemo: session running")
	session.Run(stop, time.Second)
}

func waitSigint(stop chan struct{}) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	log.Info("shutting down..")
	close(stop)
}
