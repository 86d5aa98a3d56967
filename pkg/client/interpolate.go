package client

// waypointEpsilon is how close the smoothed position must get to a waypoint
// before the next one becomes the target.
const waypointEpsilon = 0.05

// UpdateVisuals advances every player's smoothed render position toward its
// current waypoint by an exponential factor of min(1, 10*dt), so convergence
// speed is independent of frame rate. Intermediate waypoints (reconstructed
// after a lost broadcast) are consumed once reached; the final waypoint is
// approached asymptotically.
func (c *GridClient) UpdateVisuals(dt float64) {
	factor := 10 * dt
	if factor > 1 {
		factor = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, path := range c.targets {
		if len(path) == 0 {
			continue
		}
		v, ok := c.visuals[id]
		if !ok {
			c.visuals[id] = path[len(path)-1]
			c.targets[id] = path[len(path)-1:]
			continue
		}

		target := path[0]
		v.X += (target.X - v.X) * factor
		v.Y += (target.Y - v.Y) * factor

		if len(path) > 1 && near(v, target) {
			c.targets[id] = path[1:]
		}
		c.visuals[id] = v
	}
}

func near(a, b Vec2) bool {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx+dy*dy < waypointEpsilon*waypointEpsilon
}

// VisualPositions returns a copy of the smoothed positions keyed by player.
func (c *GridClient) VisualPositions() map[uint8]Vec2 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uint8]Vec2, len(c.visuals))
	for id, v := range c.visuals {
		out[id] = v
	}
	return out
}
