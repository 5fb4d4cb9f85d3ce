package presence

import (
	"errors"
	"sort"
	"sync"

	"github.com/pcidesk/chat-presence/internal/domain"
	"github.com/pcidesk/chat-presence/internal/metrics"
)

var ErrEmptyID = errors.New("officer and merchant ids are required")

// Registry tracks which compliance officer is attending which merchant.
// Both directions live under one lock so they never disagree.
type Registry struct {
	mu                sync.RWMutex
	merchantByOfficer map[string]string
	officerByMerchant map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		merchantByOfficer: make(map[string]string),
		officerByMerchant: make(map[string]string),
	}
}

// Link pairs officerID with merchantID, replacing any previous partner of
// either side.
func (r *Registry) Link(officerID, merchantID string) error {
	if officerID == "" || merchantID == "" {
		return ErrEmptyID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.merchantByOfficer[officerID]; ok && prev != merchantID {
		if r.officerByMerchant[prev] == officerID {
			delete(r.officerByMerchant, prev)
		}
	}
	if prev, ok := r.officerByMerchant[merchantID]; ok && prev != officerID {
		if r.merchantByOfficer[prev] == merchantID {
			delete(r.merchantByOfficer, prev)
		}
	}

	r.merchantByOfficer[officerID] = merchantID
	r.officerByMerchant[merchantID] = officerID
	metrics.PresenceLinks.Set(float64(len(r.merchantByOfficer)))
	return nil
}

// UnlinkOfficer removes the link held by officerID, if any.
func (r *Registry) UnlinkOfficer(officerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if merchantID, ok := r.merchantByOfficer[officerID]; ok {
		delete(r.merchantByOfficer, officerID)
		delete(r.officerByMerchant, merchantID)
	}
	metrics.PresenceLinks.Set(float64(len(r.merchantByOfficer)))
}

// UnlinkMerchant removes the link held by merchantID, if any.
func (r *Registry) UnlinkMerchant(merchantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if officerID, ok := r.officerByMerchant[merchantID]; ok {
		delete(r.officerByMerchant, merchantID)
		delete(r.merchantByOfficer, officerID)
	}
	metrics.PresenceLinks.Set(float64(len(r.merchantByOfficer)))
}

func (r *Registry) ResolveMerchantFor(officerID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	merchantID, ok := r.merchantByOfficer[officerID]
	return merchantID, ok
}

func (r *Registry) ResolveOfficerFor(merchantID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	officerID, ok := r.officerByMerchant[merchantID]
	return officerID, ok
}

// AllLinks returns a snapshot ordered by officer id.
func (r *Registry) AllLinks() []domain.PresenceLink {
	r.mu.RLock()
	links := make([]domain.PresenceLink, 0, len(r.merchantByOfficer))
	for officerID, merchantID := range r.merchantByOfficer {
		links = append(links, domain.PresenceLink{OfficerID: officerID, MerchantID: merchantID})
	}
	r.mu.RUnlock()

	sort.Slice(links, func(i, j int) bool { return links[i].OfficerID < links[j].OfficerID })
	return links
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.merchantByOfficer)
}
