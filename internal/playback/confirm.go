package playback

import "camwall/internal/platform/clock"

// confirmation is the ConfirmingPlayback sub-state of Playing. Video is only
// revealed once the playhead has moved past where it was when playback
// started and enough frames are decoded; the grace timer reveals it anyway.
type confirmation struct {
	s        *Session
	gen      uint64
	startPos float64
	poll     clock.Timer
	grace    clock.Timer
}

func startConfirmation(s *Session, gen uint64) *confirmation {
	c := &confirmation{s: s, gen: gen, startPos: s.video.Position()}
	c.poll = s.clk.Every(s.opts.ConfirmPollInterval, c.check)
	c.grace = s.clk.AfterFunc(s.opts.ConfirmGrace, func() {
		c.grace = nil
		c.finish(true)
	})
	return c
}

func (c *confirmation) check() {
	if c.s.stale(c.gen) || c.s.state != StatePlaying {
		c.stop()
		return
	}
	v := c.s.video
	if v.Position() > c.startPos && v.DecodedFrames() >= c.s.opts.MinDecodedFrames {
		c.finish(false)
	}
}

func (c *confirmation) finish(forced bool) {
	c.stop()
	if c.s.stale(c.gen) || c.s.state != StatePlaying {
		return
	}
	if c.s.confirm == c {
		c.s.confirm = nil
	}
	c.s.reveal(forced)
}

func (c *confirmation) stop() {
	if c.poll != nil {
		c.poll.Stop()
		c.poll = nil
	}
	if c.grace != nil {
		c.grace.Stop()
		c.grace = nil
	}
}

func (c *confirmation) timerCount() int {
	n := 0
	if c.poll != nil {
		n++
	}
	if c.grace != nil {
		n++
	}
	return n
}
