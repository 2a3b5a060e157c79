package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lot-engine/backoffice"
	"github.com/warp/lot-engine/engine"
	"github.com/warp/lot-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func quirkySnapshot() backoffice.Snapshot {
	return backoffice.Snapshot{
		Lots:    []engine.Lot{{ID: "lot-1", Name: "Manzana 3 Lote 7", Price: engine.NewMoney(200000)}},
		Clients: []engine.Client{{ID: "cli-1", Name: "Ana Ruiz"}},
		Files: []engine.File{
			{ID: "F1", Folio: "EXP-001", Lot: engine.RelationTo("lot-1"), Client: engine.RelationOf([]any{"cli-1"})},
			{ID: "F2", Folio: "EXP-002", Lot: engine.RelationOf([]any{map[string]any{"id": "lot-2", "price": "90000"}})},
		},
		Payments: []engine.Payment{
			{ID: "p-1", File: engine.RelationTo("F1"), Amount: engine.NewMoney(80000), PaidAt: engine.NewDate(2024, time.December, 1)},
			{ID: "p-2", File: engine.RelationOf(map[string]any{"id": "F1"}), Amount: engine.ParseMoney("40000.50")},
			{ID: "p-3", File: engine.RelationTo("F1"), Amount: engine.ParseMoney("abc")},
		},
		Documents: []engine.Document{
			{ID: "d-1", File: engine.RelationTo("F1"), Name: "contrato.pdf", Version: 1, Status: engine.DocumentReplaced},
			{ID: "d-2", File: engine.RelationTo("F1"), Name: "contrato.pdf", Version: 2, Status: engine.DocumentActive, UploadedAt: engine.NewDate(2025, time.January, 2)},
		},
		Certificates: []engine.Certificate{
			{ID: "c-1", File: engine.RelationTo("F1"), ExpiryDate: engine.ParseDate("31/01/2025"), Version: 1, Estado: "current"},
			{ID: "c-2", File: engine.RelationTo("F1"), ExpiryDate: engine.ParseDate("pronto"), Version: 2, Cancelled: true},
		},
	}
}

func TestStore_ImportSnapshotRoundTrip(t *testing.T) {
	// GIVEN: Records with nested relations, string amounts and bad dates
	// WHEN: Imported and read back
	// THEN: The derivation is identical to deriving from the original

	store := newTestStore(t)
	ctx := context.Background()

	original := quirkySnapshot()
	require.NoError(t, store.Import(ctx, original))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, original.Size(), snap.Size())

	today := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	var d backoffice.Deriver

	want, err := d.Summarize(original, "F1", today)
	require.NoError(t, err)
	got, err := d.Summarize(snap, "F1", today)
	require.NoError(t, err)

	assert.Equal(t, want.Balance.Owed.String(), got.Balance.Owed.String())
	assert.Equal(t, "79999.5", got.Balance.Owed.String())
	assert.Equal(t, want.Warnings, got.Warnings)
	assert.Equal(t, "cli-1", got.ClientID)
	assert.Equal(t, 3, got.NextDocumentVersion)
	assert.Equal(t, 3, got.NextCertificateVersion)

	f2, ok := snap.File("F2")
	require.True(t, ok)
	ref, err := engine.ResolveAs[engine.Lot](f2.Lot)
	require.NoError(t, err)
	require.NotNil(t, ref.Loaded, "nested lot survives storage")
	assert.Equal(t, "90000", ref.Loaded.Price.String())
}

func TestStore_QuirksSurvive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Import(ctx, quirkySnapshot()))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)

	dirty := snap.Payments[2]
	assert.False(t, dirty.Amount.Valid)
	assert.Equal(t, "abc", dirty.Amount.Raw)
	assert.False(t, snap.Payments[1].PaidAt.Valid())

	c1, c2 := snap.Certificates[0], snap.Certificates[1]
	assert.Equal(t, "2025-01-31", c1.ExpiryDate.String())
	assert.Equal(t, "current", c1.Estado)
	assert.True(t, c2.ExpiryDate.Malformed())
	assert.Equal(t, "pronto", c2.ExpiryDate.Raw)
	assert.True(t, c2.Cancelled)
}

func TestStore_UpsertKeepsOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Import(ctx, quirkySnapshot()))

	// Retire d-1's successor; the row is updated in place.
	d2, err := store.GetDocument(ctx, "d-2")
	require.NoError(t, err)
	d2.Status = engine.DocumentDeleted
	require.NoError(t, store.SaveDocuments(ctx, d2))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Documents, 2)
	assert.Equal(t, "d-1", snap.Documents[0].ID)
	assert.Equal(t, "d-2", snap.Documents[1].ID)
	assert.Equal(t, engine.DocumentDeleted, snap.Documents[1].Status)
	assert.Equal(t, "2025-01-02", snap.Documents[1].UploadedAt.String())
}

func TestStore_SaveDocumentsIsAtomicLineage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Import(ctx, quirkySnapshot()))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)

	rep, err := backoffice.ReplaceDocument(snap.Documents, "F1", backoffice.Upload{Name: "contrato-v3.pdf"}, "d-3", time.Now())
	require.NoError(t, err)
	require.NoError(t, store.SaveDocuments(ctx, append(rep.Retired, rep.Created)...))

	d3, err := store.GetDocument(ctx, "d-3")
	require.NoError(t, err)
	assert.Equal(t, engine.Version(3), d3.Version)

	d2, err := store.GetDocument(ctx, "d-2")
	require.NoError(t, err)
	assert.Equal(t, engine.DocumentReplaced, d2.Status)
}

func TestStore_UpdateDocumentsSerializesVersionBumps(t *testing.T) {
	// GIVEN: Ten writers replacing F1's document at the same time
	// THEN: Every writer numbers from the history the previous one saved

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveFile(ctx, engine.File{ID: "F1", Folio: "EXP-001"}))

	const writers = 10
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.UpdateDocuments(ctx, func(all []engine.Document) ([]engine.Document, error) {
				rep, err := backoffice.ReplaceDocument(all, "F1", backoffice.Upload{Name: "plano.pdf"}, fmt.Sprintf("d-%d", i), time.Now())
				if err != nil {
					return nil, err
				}
				return append(rep.Retired, rep.Created), nil
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Documents, writers)

	var versions []int
	active := 0
	for _, d := range snap.Documents {
		versions = append(versions, int(d.Version))
		if d.Status == engine.DocumentActive {
			active++
		}
	}
	sort.Ints(versions)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, versions)
	assert.Equal(t, 1, active)
}

func TestStore_UpdateCertificatesErrorSavesNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveCertificates(ctx, engine.Certificate{ID: "c-1", File: engine.RelationTo("F1"), Version: 1}))

	errStop := errors.New("stop")
	err := store.UpdateCertificates(ctx, func(all []engine.Certificate) ([]engine.Certificate, error) {
		require.Len(t, all, 1)
		return nil, errStop
	})
	assert.ErrorIs(t, err, errStop)

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Certificates, 1)

	var d backoffice.Deriver
	in := backoffice.CertificateInput{ExpiryDate: engine.NewDate(2026, time.January, 1)}
	require.NoError(t, store.UpdateCertificates(ctx, func(all []engine.Certificate) ([]engine.Certificate, error) {
		c, err := d.IssueCertificate(all, "F1", in, "c-2", time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
		return []engine.Certificate{c}, err
	}))

	c2, err := store.GetCertificate(ctx, "c-2")
	require.NoError(t, err)
	assert.Equal(t, engine.Version(2), c2.Version)
}

func TestStore_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, backoffice.ErrDocumentNotFound)

	_, err = store.GetCertificate(ctx, "missing")
	assert.ErrorIs(t, err, backoffice.ErrCertificateNotFound)
	assert.True(t, backoffice.IsNotFound(err))
}

func TestStore_SingleRecordSaves(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveLot(ctx, engine.Lot{ID: "lot-1", Price: engine.NewMoney(1000)}))
	require.NoError(t, store.SaveLot(ctx, engine.Lot{ID: "lot-1", Price: engine.NewMoney(1500)}))
	require.NoError(t, store.SaveClient(ctx, engine.Client{ID: "cli-1", Name: "Ana"}))
	require.NoError(t, store.SaveFile(ctx, engine.File{ID: "F1", Lot: engine.RelationTo("lot-1")}))
	require.NoError(t, store.SavePayment(ctx, engine.Payment{ID: "p-1", File: engine.RelationTo("F1"), Amount: engine.NewMoney(500)}))
	require.NoError(t, store.SaveCertificates(ctx, engine.Certificate{ID: "c-1", File: engine.RelationTo("F1"), Version: 1}))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Lots, 1)
	assert.Equal(t, "1500", snap.Lots[0].Price.String())

	c, err := store.GetCertificate(ctx, "c-1")
	require.NoError(t, err)
	assert.False(t, c.ExpiryDate.Valid())
	assert.Empty(t, c.Estado)
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Import(ctx, quirkySnapshot()))

	require.NoError(t, store.Reset(ctx))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.Size())
}
