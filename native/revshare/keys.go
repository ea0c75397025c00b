package revshare

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"
)

var (
	safetyKey         = []byte("revshare/safety")
	issuerRegistryKey = []byte("revshare/issuers")
	offeringPrefix    = "revshare/offering/"
	issuerCountPrefix = "revshare/issuer-count/"
	issuerEntryPrefix = "revshare/issuer-entry/"
	sharePrefix       = "revshare/share/"
	holderIndexPrefix = "revshare/holders/"
	shareTotalPrefix  = "revshare/share-total/"
	concentrationPfx  = "revshare/concentration/"
	blacklistPrefix   = "revshare/blacklist/"
	blacklistListPfx  = "revshare/blacklist-order/"
	configPrefix      = "revshare/config/"
	periodPrefix      = "revshare/period/"
	periodEntryPrefix = "revshare/period-entry/"
	auditPrefix       = "revshare/audit/"
	claimPrefix       = "revshare/claim/"
	claimIndexPrefix  = "revshare/claims/"
)

func addrKey(prefix string, addr [20]byte) []byte {
	return []byte(prefix + hex.EncodeToString(addr[:]))
}

func pairKey(prefix string, a, b [20]byte) []byte {
	return []byte(prefix + hex.EncodeToString(a[:]) + "/" + hex.EncodeToString(b[:]))
}

func offeringKey(token [20]byte) []byte { return addrKey(offeringPrefix, token) }
func issuerCountKey(issuer [20]byte) []byte { return addrKey(issuerCountPrefix, issuer) }
func shareKey(token, holder [20]byte) []byte { return pairKey(sharePrefix, token, holder) }
func holderIndexKey(token [20]byte) []byte { return addrKey(holderIndexPrefix, token) }
func shareTotalKey(token [20]byte) []byte { return addrKey(shareTotalPrefix, token) }
func concentrationKey(token [20]byte) []byte { return addrKey(concentrationPfx, token) }
func blacklistKey(token, holder [20]byte) []byte { return pairKey(blacklistPrefix, token, holder) }
func blacklistListKey(token [20]byte) []byte { return addrKey(blacklistListPfx, token) }
func configKey(token [20]byte) []byte { return addrKey(configPrefix, token) }
func auditKey(token [20]byte) []byte { return addrKey(auditPrefix, token) }
func claimIndexKey(token, holder [20]byte) []byte { return pairKey(claimIndexPrefix, token, holder) }

func issuerEntryKey(issuer [20]byte, index uint64) []byte {
	return append(addrKey(issuerEntryPrefix, issuer), []byte("/"+strconv.FormatUint(index, 10))...)
}

func periodKey(token [20]byte, id uint64) []byte {
	return append(addrKey(periodPrefix, token), []byte("/"+strconv.FormatUint(id, 10))...)
}

func periodEntryKey(token [20]byte, index uint64) []byte {
	return append(addrKey(periodEntryPrefix, token), []byte("/"+strconv.FormatUint(index, 10))...)
}

func claimKey(token, holder [20]byte, id uint64) []byte {
	return append(pairKey(claimPrefix, token, holder), []byte("/"+strconv.FormatUint(id, 10))...)
}

func encodePeriodID(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

func decodePeriodID(b []byte) (uint64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(b), true
}
