package revshare

import "bytes"

func isBlacklisted(r kvReader, token, holder [20]byte) (bool, error) {
	return r.KVHas(blacklistKey(token, holder))
}

func loadBlacklist(r kvReader, token [20]byte) ([][20]byte, error) {
	var raw [][]byte
	if err := r.KVGetList(blacklistListKey(token), &raw); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, b := range raw {
		var id [20]byte
		copy(id[:], b)
		out = append(out, id)
	}
	return out, nil
}

// BlacklistAdd excludes investor from distributions and claims on token.
// Adding an existing entry is a no-op.
func (e *Engine) BlacklistAdd(caller, token, investor [20]byte) error {
	return e.mutate("blacklist_add", func(c *call) error {
		if _, err := c.issuerCall(caller, token); err != nil {
			return err
		}
		listed, err := isBlacklisted(c.txn, token, investor)
		if err != nil || listed {
			return err
		}
		if err := c.txn.KVPut(blacklistKey(token, investor), true); err != nil {
			return err
		}
		if _, err := c.txn.KVAppend(blacklistListKey(token), investor[:]); err != nil {
			return err
		}
		c.emit(BlacklistEvent(true, token, investor, caller))
		return nil
	})
}

// BlacklistRemove restores investor on token. Removing an absent entry is a
// no-op.
func (e *Engine) BlacklistRemove(caller, token, investor [20]byte) error {
	return e.mutate("blacklist_remove", func(c *call) error {
		if _, err := c.issuerCall(caller, token); err != nil {
			return err
		}
		listed, err := isBlacklisted(c.txn, token, investor)
		if err != nil || !listed {
			return err
		}
		if err := c.txn.KVDelete(blacklistKey(token, investor)); err != nil {
			return err
		}
		if err := removeListEntry(c.txn, blacklistListKey(token), investor[:]); err != nil {
			return err
		}
		c.emit(BlacklistEvent(false, token, investor, caller))
		return nil
	})
}

// removeListEntry drops value from the byte-slice list under key, deleting the
// key once the list is empty.
func removeListEntry(w kvWriter, key, value []byte) error {
	var raw [][]byte
	if err := w.KVGetList(key, &raw); err != nil {
		return err
	}
	kept := raw[:0]
	for _, b := range raw {
		if !bytes.Equal(b, value) {
			kept = append(kept, b)
		}
	}
	if len(kept) == 0 {
		return w.KVDelete(key)
	}
	return w.KVPut(key, kept)
}

// IsBlacklisted reports whether investor is excluded on token.
func (e *Engine) IsBlacklisted(token, investor [20]byte) (bool, error) {
	var listed bool
	err := e.view(func(r kvReader) error {
		var err error
		listed, err = isBlacklisted(r, token, investor)
		return err
	})
	return listed, err
}

// GetBlacklist returns token's blacklist in insertion order.
func (e *Engine) GetBlacklist(token [20]byte) ([][20]byte, error) {
	var out [][20]byte
	err := e.view(func(r kvReader) error {
		var err error
		out, err = loadBlacklist(r, token)
		return err
	})
	return out, err
}
