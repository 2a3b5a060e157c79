package backoffice

import (
	"fmt"
	"sort"
	"time"

	"github.com/warp/lot-engine/engine"
)

// =============================================================================
// CERTIFICATE VIEWS
// =============================================================================

func (d Deriver) view(c engine.Certificate, fileID string, today time.Time) CertificateView {
	lc := engine.ClassifyDateWithin(c.ExpiryDate, today, d.warningDays())
	v := CertificateView{
		Certificate: c,
		FileID:      fileID,
		Lifecycle:   lc,
		Display:     DisplayStatus(lc.State),
	}
	if c.Cancelled {
		v.Display = DisplayCancelled
	}
	v.StaleCache = c.Estado != "" && c.Estado != string(lc.State)
	return v
}

// View classifies a single certificate. A malformed file relation leaves
// FileID empty.
func (d Deriver) View(c engine.Certificate, today time.Time) CertificateView {
	res, _ := c.File.Resolve()
	return d.view(c, res.ID, today)
}

// Certificates classifies every certificate in the snapshot. A certificate
// whose file relation is malformed is still listed, without a FileID, and
// reported as a warning.
func (d Deriver) Certificates(snap Snapshot, today time.Time) ([]CertificateView, []engine.Warning) {
	var (
		views    []CertificateView
		warnings []engine.Warning
	)
	for _, c := range snap.Certificates {
		res, err := c.File.Resolve()
		if err != nil {
			warnings = append(warnings, engine.Warning{
				Code:     engine.WarnMalformedRelation,
				RecordID: c.ID,
				Detail:   fmt.Sprintf("certificate file relation: %v", err),
			})
		}
		if c.ExpiryDate.Malformed() {
			warnings = append(warnings, engine.Warning{
				Code:     engine.WarnUnparseableDate,
				RecordID: c.ID,
				Detail:   fmt.Sprintf("expiry date %q is not a date", c.ExpiryDate.Raw),
			})
		}
		views = append(views, d.view(c, res.ID, today))
	}
	sortViews(views)
	return views, warnings
}

// Upcoming lists certificates expiring today or within the given number of
// days, soonest first. Cancelled certificates are left out. A non-positive
// window uses the Deriver's upcoming window. Warnings cover the whole
// snapshot, as in Certificates: an unparseable expiry can hide a due date.
func (d Deriver) Upcoming(snap Snapshot, today time.Time, within int) ([]CertificateView, []engine.Warning) {
	if within <= 0 {
		within = d.UpcomingWindow()
	}
	all, warnings := d.Certificates(snap, today)

	var upcoming []CertificateView
	for _, v := range all {
		if v.Certificate.Cancelled || !v.Lifecycle.DueWithin(within) {
			continue
		}
		upcoming = append(upcoming, v)
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].Lifecycle.DaysRemaining < upcoming[j].Lifecycle.DaysRemaining
	})
	return upcoming, warnings
}

// StaleEstados returns the certificates whose persisted estado no longer
// matches the recomputed state, with the estado refreshed. The caller decides
// whether to write them back.
func (d Deriver) StaleEstados(snap Snapshot, today time.Time) []engine.Certificate {
	views, _ := d.Certificates(snap, today)
	var stale []engine.Certificate
	for _, v := range views {
		if !v.StaleCache {
			continue
		}
		c := v.Certificate
		c.Estado = string(v.Lifecycle.State)
		stale = append(stale, c)
	}
	return stale
}

// sortViews orders by display priority, then days remaining, then version
// (newest first).
func sortViews(views []CertificateView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if pa, pb := a.Lifecycle.Priority(), b.Lifecycle.Priority(); pa != pb {
			return pa < pb
		}
		if a.Lifecycle.DaysRemaining != b.Lifecycle.DaysRemaining {
			return a.Lifecycle.DaysRemaining < b.Lifecycle.DaysRemaining
		}
		return a.Certificate.Version > b.Certificate.Version
	})
}
