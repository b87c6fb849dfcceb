package flow

// LoopScope accumulates the contexts leaving a loop or switch body through
// `break` and `continue`.
type LoopScope struct {
	parent *LoopScope
	// Switch marks the scope of a switch statement, which `continue`
	// leaves like `break`.
	Switch    bool
	Breaks    []*Context
	Continues []*Context
}

// EnterLoop pushes a new loop (or switch) scope on c and returns it.
func (c *Context) EnterLoop(isSwitch bool) *LoopScope {
	c.loop = &LoopScope{parent: c.loop, Switch: isSwitch}
	return c.loop
}

// ExitLoop pops s, which must be the innermost scope of c.
func (c *Context) ExitLoop(s *LoopScope) {
	c.loop = s.parent
}

// Loop is the innermost enclosing loop or switch scope, nil at top level.
func (c *Context) Loop() *LoopScope { return c.loop }

func (c *Context) target(levels int) *LoopScope {
	if levels < 1 {
		levels = 1
	}
	s := c.loop
	for ; s != nil && levels > 1; levels-- {
		s = s.parent
	}
	return s
}

// Break snapshots c into the scope `levels` out and makes c unreachable.
// It reports false when there are fewer enclosing scopes than levels.
func (c *Context) Break(levels int) bool {
	s := c.target(levels)
	if s == nil {
		c.MarkUnreachable()
		return false
	}
	if c.Reachable() {
		s.Breaks = append(s.Breaks, c.Snapshot())
	}
	c.MarkUnreachable()
	return true
}

// Continue snapshots c into the scope `levels` out as the start of another
// iteration and makes c unreachable. A switch scope treats it as a break.
func (c *Context) Continue(levels int) bool {
	s := c.target(levels)
	if s == nil {
		c.MarkUnreachable()
		return false
	}
	if c.Reachable() {
		if s.Switch {
			s.Breaks = append(s.Breaks, c.Snapshot())
		} else {
			s.Continues = append(s.Continues, c.Snapshot())
		}
	}
	c.MarkUnreachable()
	return true
}
