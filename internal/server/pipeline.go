package server

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dev.c0redev.viewlink/internal/batch"
	"dev.c0redev.viewlink/internal/capture"
	"dev.c0redev.viewlink/internal/proto"
	"dev.c0redev.viewlink/internal/session"
)

// inFlight is one Draw awaiting its Ack.
type inFlight struct {
	sent time.Time
	size int
}

// pipeline is the per-window update loop: damage in, batch delay,
// capture, frame out, ack tracking. One pipeline per (session,
// window); all sends go through the session's write-serialized Conn.
type pipeline struct {
	wid  uint32
	sess *session.Session
	ctl  *batch.Controller
	src  capture.Source
	trk  *tracker

	// flushMu serializes whole flush rounds; mu guards the fields.
	flushMu sync.Mutex

	mu           sync.Mutex
	pending      []proto.Damage
	pendingSince time.Time
	scheduled    bool
	seq          uint64
	awaiting     map[uint64]inFlight
	windowArea   float64
	delayMillis  float64
}

func newPipeline(sess *session.Session, wid uint32, src capture.Source, trk *tracker) *pipeline {
	ctl := sess.Controller(wid)
	return &pipeline{
		wid:         wid,
		sess:        sess,
		ctl:         ctl,
		src:         src,
		trk:         trk,
		awaiting:    make(map[uint64]inFlight),
		delayMillis: ctl.Config.Delay,
	}
}

// Damage queues a changed region and arms the batch timer if it is
// not already running. The delay in force when the timer is armed is
// the one used; later recomputations apply to the next round.
func (p *pipeline) Damage(d *proto.Damage) {
	p.mu.Lock()
	if len(p.pending) == 0 {
		p.pendingSince = time.Now()
	}
	p.pending = append(p.pending, *d)
	if area := float64(d.W) * float64(d.H); area > p.windowArea {
		p.windowArea = area
	}
	armed := p.scheduled
	p.scheduled = true
	delay := time.Duration(p.delayMillis * float64(time.Millisecond))
	p.mu.Unlock()

	if !armed {
		p.ctl.Config.Schedule(delay, p.flush)
	}
}

// flush captures every pending region, sends the draws and feeds the
// round's measurements back into the controller.
func (p *pipeline) flush() {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	regions := p.pending
	p.pending = nil
	since := p.pendingSince
	p.scheduled = false
	p.mu.Unlock()
	if len(regions) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var updateArea float64
	for _, d := range regions {
		updateArea += float64(d.W) * float64(d.H) / 1e6

		frame, err := p.src.Grab(ctx, p.wid, capture.Region{X: d.X, Y: d.Y, W: d.W, H: d.H})
		if err != nil {
			logger.WithError(err).WithField("wid", p.wid).Warn("capture failed")
			continue
		}
		if frame == nil {
			continue
		}
		captured := time.Now()
		damagedAt := time.UnixMilli(d.AtMillis)
		p.trk.RecordDamageIn(captured, captured.Sub(damagedAt).Seconds())

		p.mu.Lock()
		p.seq++
		seq := p.seq
		p.awaiting[seq] = inFlight{sent: captured, size: len(frame.Data)}
		depth := len(p.awaiting)
		p.mu.Unlock()
		p.trk.RecordQueueSize(captured, depth)

		err = p.sess.Conn.Send(&proto.Draw{
			WID: p.wid,
			X:   d.X, Y: d.Y, W: d.W, H: d.H,
			Encoding: frame.Encoding,
			Seq:      seq,
			Data:     frame.Data,
		})
		if err != nil {
			logger.WithError(err).WithField("wid", p.wid).Warn("draw send failed")
			return
		}
		sent := time.Now()
		p.trk.RecordDamageOut(sent, sent.Sub(damagedAt).Seconds())
	}

	now := time.Now()
	actualDelay := float64(now.Sub(since).Milliseconds())
	p.mu.Lock()
	area := p.windowArea
	p.mu.Unlock()
	p.ctl.Recompute(p.trk.Inputs(now, area, updateArea), actualDelay)
	p.ctl.Config.RecordDelay(now, p.ctl.Config.Delay)

	p.mu.Lock()
	p.delayMillis = p.ctl.Config.Delay
	rearm := len(p.pending) > 0
	if rearm {
		p.scheduled = true
	}
	delay := time.Duration(p.delayMillis * float64(time.Millisecond))
	p.mu.Unlock()
	if rearm {
		p.ctl.Config.Schedule(delay, p.flush)
	}
}

// Ack resolves one in-flight draw and feeds the client's decode
// performance back into the statistics.
func (p *pipeline) Ack(a *proto.Ack) {
	p.mu.Lock()
	fl, ok := p.awaiting[a.Seq]
	if ok {
		delete(p.awaiting, a.Seq)
	}
	depth := len(p.awaiting)
	p.mu.Unlock()
	if !ok {
		logger.WithFields(logrus.Fields{"wid": p.wid, "seq": a.Seq}).Debug("ack for unknown sequence")
		return
	}
	now := time.Now()
	p.trk.RecordQueueSize(now, depth)
	decodeTime := float64(a.DecodeMillis) / 1000.0
	p.trk.RecordDecode(now, fl.size, decodeTime)
	// Roundtrip minus the client's own decode time approximates the
	// network latency for this draw.
	if net := now.Sub(fl.sent).Seconds() - decodeTime; net > 0 {
		p.trk.RecordClientLatency(now, net)
	}
}
