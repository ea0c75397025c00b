package rpc

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"revledger/native/revshare"
)

type safetyJSON struct {
	Admin          string `json:"admin,omitempty"`
	Safety         string `json:"safety,omitempty"`
	Initialized    bool   `json:"initialized"`
	Paused         bool   `json:"paused"`
	Frozen         bool   `json:"frozen"`
	TestnetMode    bool   `json:"testnetMode"`
	PlatformFeeBps uint32 `json:"platformFeeBps"`
	Version        uint64 `json:"version"`
}

type offeringJSON struct {
	Issuer          string `json:"issuer"`
	Token           string `json:"token"`
	RevenueShareBps uint32 `json:"revenueShareBps"`
	PaymentToken    string `json:"paymentToken"`
	Metadata        string `json:"metadata,omitempty"`
	Index           uint64 `json:"index"`
	CreatedAt       uint64 `json:"createdAt"`
}

type offeringsPageJSON struct {
	Offerings  []offeringJSON `json:"offerings"`
	NextCursor *uint32        `json:"nextCursor,omitempty"`
}

type auditJSON struct {
	Issuer           string `json:"issuer"`
	Token            string `json:"token"`
	TotalDeposited   string `json:"totalDeposited"`
	TotalReported    string `json:"totalReported"`
	TotalDistributed string `json:"totalDistributed"`
	TotalResidue     string `json:"totalResidue"`
	TotalForfeited   string `json:"totalForfeited"`
	TotalClaimed     string `json:"totalClaimed"`
	LastResidue      string `json:"lastResidue"`
	LatestPeriodID   uint64 `json:"latestPeriodId"`
	PeriodCount      uint64 `json:"periodCount"`
	DepositCount     uint64 `json:"depositCount"`
	ReportCount      uint64 `json:"reportCount"`
}

type claimJSON struct {
	Token      string `json:"token"`
	Holder     string `json:"holder"`
	PeriodID   uint64 `json:"periodId"`
	AmountDue  string `json:"amountDue"`
	Status     string `json:"status"`
	EligibleAt uint64 `json:"eligibleAt"`
	ClaimedAt  uint64 `json:"claimedAt,omitempty"`
}

type claimableJSON struct {
	Token   string   `json:"token"`
	Holder  string   `json:"holder"`
	Amount  string   `json:"amount"`
	Periods []uint64 `json:"periods"`
}

func hexAddr(addr [20]byte) string { return "0x" + hex.EncodeToString(addr[:]) }

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// addrParam parses a hex address URL parameter.
func addrParam(r *http.Request, name string) ([20]byte, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if !common.IsHexAddress(raw) {
		return [20]byte{}, fmt.Errorf("invalid %s address %q", name, raw)
	}
	return common.HexToAddress(raw), nil
}

func uint32Query(r *http.Request, name string) (uint32, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v > math.MaxUint32 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return uint32(v), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSafety(w http.ResponseWriter, r *http.Request) {
	st, err := s.ledger.SafetyState()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := safetyJSON{
		Initialized:    st.Initialized,
		Paused:         st.Paused,
		Frozen:         st.Frozen,
		TestnetMode:    st.TestnetMode,
		PlatformFeeBps: st.PlatformFeeBps,
		Version:        st.Version,
	}
	if st.HasAdmin {
		out.Admin = hexAddr(st.Admin)
	}
	if st.HasSafety {
		out.Safety = hexAddr(st.Safety)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOfferings(w http.ResponseWriter, r *http.Request) {
	issuer, err := addrParam(r, "issuer")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	cursor, err := uint32Query(r, "cursor")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := uint32Query(r, "limit")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page, next, err := s.ledger.GetOfferingsPage(issuer, cursor, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := offeringsPageJSON{Offerings: make([]offeringJSON, 0, len(page)), NextCursor: next}
	for _, o := range page {
		out.Offerings = append(out.Offerings, offeringJSON{
			Issuer:          hexAddr(o.Issuer),
			Token:           hexAddr(o.Token),
			RevenueShareBps: o.RevenueShareBps,
			PaymentToken:    hexAddr(o.PaymentToken),
			Metadata:        o.Metadata,
			Index:           o.Index,
			CreatedAt:       o.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOfferingCount(w http.ResponseWriter, r *http.Request) {
	issuer, err := addrParam(r, "issuer")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	count, err := s.ledger.GetOfferingCount(issuer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"issuer": hexAddr(issuer), "count": count})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	issuer, err := addrParam(r, "issuer")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	token, err := addrParam(r, "token")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	a, ok, err := s.ledger.GetAuditSummary(issuer, token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "no audit summary")
		return
	}
	writeJSON(w, http.StatusOK, auditJSON{
		Issuer:           hexAddr(a.Issuer),
		Token:            hexAddr(a.Token),
		TotalDeposited:   amount(a.TotalDeposited),
		TotalReported:    amount(a.TotalReported),
		TotalDistributed: amount(a.TotalDistributed),
		TotalResidue:     amount(a.TotalResidue),
		TotalForfeited:   amount(a.TotalForfeited),
		TotalClaimed:     amount(a.TotalClaimed),
		LastResidue:      amount(a.LastResidue),
		LatestPeriodID:   a.LatestPeriodID,
		PeriodCount:      a.PeriodCount,
		DepositCount:     a.DepositCount,
		ReportCount:      a.ReportCount,
	})
}

func (s *Server) handleBlacklist(w http.ResponseWriter, r *http.Request) {
	token, err := addrParam(r, "token")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.ledger.GetBlacklist(token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	holders := make([]string, 0, len(list))
	for _, h := range list {
		holders = append(holders, hexAddr(h))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": hexAddr(token), "holders": holders})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	token, err := addrParam(r, "token")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	holder, err := addrParam(r, "holder")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	periodID, err := strconv.ParseUint(chi.URLParam(r, "period"), 10, 64)
	if err != nil || periodID == 0 {
		writeError(w, r, http.StatusBadRequest, "invalid period")
		return
	}
	rec, ok, err := s.ledger.GetClaimRecord(token, holder, periodID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "no claim record")
		return
	}
	status, err := s.ledger.GetClaimStatus(token, holder, periodID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claimJSON{
		Token:      hexAddr(rec.Token),
		Holder:     hexAddr(rec.Holder),
		PeriodID:   rec.PeriodID,
		AmountDue:  amount(rec.AmountDue),
		Status:     string(status),
		EligibleAt: rec.EligibleAt,
		ClaimedAt:  rec.ClaimedAt,
	})
}

func (s *Server) handleClaimable(w http.ResponseWriter, r *http.Request) {
	token, err := addrParam(r, "token")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	holder, err := addrParam(r, "holder")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	total, err := s.ledger.GetClaimable(token, holder)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	periods, err := s.ledger.GetPendingPeriods(token, holder)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claimableJSON{
		Token:   hexAddr(token),
		Holder:  hexAddr(holder),
		Amount:  amount(total),
		Periods: periods,
	})
}

var _ Ledger = (*revshare.Engine)(nil)
