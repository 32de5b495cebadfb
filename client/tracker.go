package client

import (
	"context"
	"time"

	"github.com/chewxy/math32"

	"github.com/zeeshan-mehdi/ARISXR/server/common"
)

// Position reporting parameters. The threshold keeps idle viewers silent;
// rounding keeps payloads small.
const (
	DefaultTrackInterval = 500 * time.Millisecond
	moveThreshold        = 0.5
)

// TrackPosition polls pos every interval and reports it to the server when
// any axis has moved more than 0.5 world units since the last report.
// Coordinates are rounded to one decimal before comparison and send. It
// blocks until ctx is cancelled or the connection is gone, so run it on its
// own goroutine scoped to the owning view.
func (c *Client) TrackPosition(ctx context.Context, interval time.Duration, pos func() [3]float32) {
	if interval <= 0 {
		interval = DefaultTrackInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last [3]float32
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			if c.SelfID() == "" {
				// Not welcomed yet.
				continue
			}
			p := roundPosition(pos())
			if !moved(last, p) {
				continue
			}
			last = p
			c.sendPosition(p)
		}
	}
}

func (c *Client) sendPosition(p [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return
	}
	msg := common.Position{Type: common.TypePosition, Position: p}
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.Error().Err(err).Msg("sending position")
	}
}

func roundPosition(p [3]float32) [3]float32 {
	for i := range p {
		p[i] = math32.Round(p[i]*10) / 10
	}
	return p
}

func moved(from, to [3]float32) bool {
	for i := range from {
		if math32.Abs(to[i]-from[i]) > moveThreshold {
			return true
		}
	}
	return false
}
