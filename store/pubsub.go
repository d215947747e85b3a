package store

// Subscribe registers ob on channel, returning an unsubscribe func. Mirrors
// spec.md §3.3's channels map: "entries are removed when the list empties."
func (db *Db) Subscribe(channel string, ob Outbox) (unsubscribe func()) {
	db.chMu.Lock()
	db.channels[channel] = append(db.channels[channel], ob)
	db.chMu.Unlock()
	return func() {
		db.chMu.Lock()
		subs := db.channels[channel]
		for i, x := range subs {
			if x == ob {
				subs = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(subs) == 0 {
			delete(db.channels, channel)
		} else {
			db.channels[channel] = subs
		}
		db.chMu.Unlock()
	}
}

// Publish delivers msg to every current subscriber of channel and returns
// the number of successful sends (the PUBLISH command's Integer reply).
// A subscriber whose TrySend fails is pruned from the channel's list, and
// the channel entry is removed once its list is empty.
func (db *Db) Publish(channel string, msg any) int {
	db.chMu.Lock()
	defer db.chMu.Unlock()
	subs := db.channels[channel]
	kept := subs[:0]
	for _, ob := range subs {
		if ob.TrySend(msg) {
			kept = append(kept, ob)
		}
	}
	if len(kept) == 0 {
		delete(db.channels, channel)
	} else {
		db.channels[channel] = kept
	}
	return len(kept)
}

// ChannelNames returns channels with at least one subscriber, optionally
// filtered by pattern match performed by the caller (PUBSUB CHANNELS).
func (db *Db) ChannelNames() []string {
	db.chMu.RLock()
	defer db.chMu.RUnlock()
	out := make([]string, 0, len(db.channels))
	for name := range db.channels {
		out = append(out, name)
	}
	return out
}

func (db *Db) NumSubscribers(channel string) int {
	db.chMu.RLock()
	defer db.chMu.RUnlock()
	return len(db.channels[channel])
}
