package mixer

func tagMatches(want, have int) bool {
	return want == NoGroup || want == have
}

// GroupChannel assigns ch to group tag; tag -1 removes it from any group
func (e *Engine) GroupChannel(ch, tag int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.validChannel(ch) {
		return false
	}
	e.channels[ch].tag = tag
	return true
}

// GroupChannels tags the inclusive range [from, to] and returns how many
// channels were tagged
func (e *Engine) GroupChannels(from, to, tag int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	count := 0
	for i := from; i <= to; i++ {
		if e.validChannel(i) {
			e.channels[i].tag = tag
			count++
		}
	}
	return count
}

// GroupAvailable returns the first idle channel in the group, or -1. Tag
// -1 searches every channel.
func (e *Engine) GroupAvailable(tag int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, c := range e.channels {
		if tagMatches(tag, c.tag) && !c.active {
			return i
		}
	}
	return -1
}

// GroupCount returns the number of channels in the group. Tag -1 counts
// every channel.
func (e *Engine) GroupCount(tag int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	count := 0
	for _, c := range e.channels {
		if tagMatches(tag, c.tag) {
			count++
		}
	}
	return count
}

// GroupOldest returns the playing channel in the group that started first,
// or -1
func (e *Engine) GroupOldest(tag int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.groupPick(tag, func(candidate, best uint64) bool { return candidate < best })
}

// GroupNewer returns the playing channel in the group that started most
// recently, or -1
func (e *Engine) GroupNewer(tag int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.groupPick(tag, func(candidate, best uint64) bool { return candidate > best })
}

func (e *Engine) groupPick(tag int, better func(candidate, best uint64) bool) int {
	chosen := -1
	var best uint64
	for i, c := range e.channels {
		if !c.active || !tagMatches(tag, c.tag) {
			continue
		}
		if chosen < 0 || better(c.startSeq, best) {
			chosen = i
			best = c.startSeq
		}
	}
	return chosen
}

// FadeOutGroup fades out every channel tagged tag and returns how many
// started fading. Tag -1 affects nothing; use FadeOutChannel(-1, ms).
func (e *Engine) FadeOutGroup(tag, ms int) int {
	if tag == NoGroup {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	count := 0
	for _, c := range e.channels {
		if c.tag == tag && e.fadeOut(c, ms) {
			count++
		}
	}
	return count
}

// HaltGroup halts every channel tagged tag and returns how many were
// playing. Tag -1 affects nothing; use HaltChannel(-1).
func (e *Engine) HaltGroup(tag int) int {
	if tag == NoGroup {
		return 0
	}
	e.mu.Lock()
	count := 0
	for i, c := range e.channels {
		if c.tag == tag && e.stopChannel(i, ReasonHalted) {
			count++
		}
	}
	e.unlock()
	return count
}
