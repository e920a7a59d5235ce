package engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/model"
	"github.com/Veraticus/spice-sms/internal/sms"
	"github.com/Veraticus/spice-sms/internal/storage"
	"github.com/Veraticus/spice-sms/internal/testutil"
)

var now = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

func raw(id, sender, body string, at time.Time) model.RawMessage {
	return model.RawMessage{ID: id, Sender: sender, Body: body, Timestamp: at}
}

func fixtureMessages() []model.RawMessage {
	swiggyAt := time.Date(2024, 12, 25, 13, 4, 0, 0, time.UTC)
	return []model.RawMessage{
		raw("m1", "HDFCBK", "Alert: You have spent Rs.250.00 on your HDFC Bank Credit Card at SWIGGY BANGALORE on 25-Dec-24", swiggyAt),
		raw("m2", "PROMO", "DELIVERY confirmation for your order #123456. Track at www.example.com", swiggyAt.Add(-24*time.Hour)),
		raw("m3", "VM-ICICIB", "INR 1,200.00 debited from Acct XX77 to ZOMATO via UPI Ref 4411", swiggyAt.Add(24*time.Hour)),
		raw("m4", "AD-HDFCBK", "Alert: You have spent Rs.250.50 on your HDFC Bank Credit Card at SWIGGY BANGALORE on 25-Dec-24", swiggyAt.Add(2*time.Minute)),
		raw("m5", "KOTAKB", "Your OTP is 1234", swiggyAt.Add(48*time.Hour)),
		raw("m6", "HDFCBK", "Rs 99.00 debited from a/c XX12 at OLD SHOP", now.Add(-200*24*time.Hour)),
	}
}

type progressCall struct {
	status    string
	processed int
	total     int
}

type recorder struct {
	calls []progressCall
}

func (r *recorder) record(processed, total int, status string) {
	r.calls = append(r.calls, progressCall{processed: processed, total: total, status: status})
}

func (r *recorder) last() progressCall {
	return r.calls[len(r.calls)-1]
}

func newTestEngine(t *testing.T, src *testutil.StaticSource, cfg Config) (*Engine, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDBWithOptions(t, testutil.TestDBOptions{Clock: fixedClock})
	e := NewWithConfig(src, db.Storage, cfg)
	e.SetClock(fixedClock)
	return e, db
}

func TestEngine_Scan(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewStaticSource(fixtureMessages()...)
	e, db := newTestEngine(t, src, DefaultConfig())

	rec := &recorder{}
	result, err := e.Scan(ctx, rec.record)
	require.NoError(t, err)

	_, err = uuid.Parse(result.RunID)
	assert.NoError(t, err)
	assert.Equal(t, model.SyncStatusCompleted, result.Status)
	assert.Equal(t, 5, result.Total, "message older than the lookback is not read")
	assert.Equal(t, 5, result.Processed)

	require.Len(t, result.Accepted, 2)
	assert.Equal(t, "m1", result.Accepted[0].MessageID)
	assert.Equal(t, "m3", result.Accepted[1].MessageID)
	assert.Equal(t, "HDFC Bank", result.Accepted[0].BankName)
	assert.Equal(t, "ICICI Bank", result.Accepted[1].BankName)
	assert.Equal(t, "ZOMATO", result.Accepted[1].MerchantNormalized)
	assert.Equal(t, db.MustCategoryID(model.CategoryFood), result.Accepted[0].CategoryID)

	reasons := map[string]string{}
	for _, r := range result.Rejected {
		reasons[r.MessageID] = r.Reason
	}
	assert.Equal(t, map[string]string{
		"m2": sms.ReasonUnknownSender,
		"m4": ReasonDuplicate,
		"m5": sms.ReasonMissingReference,
	}, reasons)
	assert.Equal(t, 1, result.Duplicates())

	for _, txn := range result.Accepted {
		assert.True(t, txn.Amount.GreaterThanOrEqual(decimal.NewFromInt(1)))
		assert.GreaterOrEqual(t, txn.Confidence, 0.0)
		assert.LessOrEqual(t, txn.Confidence, 1.0)
	}

	stored, err := db.Storage.GetAllTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	assert.True(t, strings.HasPrefix(rec.last().status, "completed"))
	assert.Equal(t, 5, rec.last().processed)

	state, err := db.Storage.GetSyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusCompleted, state.Status)
	assert.Equal(t, "m5", state.LastMessageID)
	assert.Equal(t, 2, state.TotalTransactions)
	assert.True(t, state.LastSyncAt.Equal(now))
	assert.True(t, state.LastFullSync.Equal(now))
}

func TestEngine_ScanIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewStaticSource(fixtureMessages()...)
	e, db := newTestEngine(t, src, DefaultConfig())

	_, err := e.Scan(ctx, nil)
	require.NoError(t, err)

	again, err := e.Scan(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, again.Accepted)
	assert.Equal(t, 2, again.AlreadyImported)

	stored, err := db.Storage.GetAllTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestEngine_ScanYieldsAtInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.YieldEvery = 2
	e, _ := newTestEngine(t, testutil.NewStaticSource(fixtureMessages()...), cfg)

	rec := &recorder{}
	_, err := e.Scan(context.Background(), rec.record)
	require.NoError(t, err)

	processed := make([]int, 0, len(rec.calls))
	for _, c := range rec.calls {
		processed = append(processed, c.processed)
		assert.Equal(t, 5, c.total)
	}
	assert.Equal(t, []int{0, 2, 4, 5, 5}, processed)
}

func TestEngine_ScanRespectsMaxMessages(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMessages = 3
	e, _ := newTestEngine(t, testutil.NewStaticSource(fixtureMessages()...), cfg)

	result, err := e.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
}

func TestEngine_ScanSourceFailure(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewStaticSource()
	src.Err = errors.New("permission denied")
	e, db := newTestEngine(t, src, DefaultConfig())

	rec := &recorder{}
	result, err := e.Scan(ctx, rec.record)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, model.SyncStatusFailed, result.Status)
	assert.True(t, strings.HasPrefix(rec.last().status, "failed"))

	state, err := db.Storage.GetSyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusFailed, state.Status)
}

func TestEngine_ScanCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := DefaultConfig()
	cfg.YieldEvery = 2
	e, db := newTestEngine(t, testutil.NewStaticSource(fixtureMessages()...), cfg)

	result, err := e.Scan(ctx, func(processed, _ int, _ string) {
		if processed == 2 {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.SyncStatusCancelled, result.Status)
	assert.Equal(t, 2, result.Processed)
	assert.Len(t, result.Accepted, 1)

	state, err := db.Storage.GetSyncState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusCancelled, state.Status)
}

func TestEngine_GuardSerializesOperations(t *testing.T) {
	e, _ := newTestEngine(t, testutil.NewStaticSource(), DefaultConfig())

	e.guard.Lock()
	_, err := e.Scan(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrScanInProgress)
	_, err = e.CleanupDuplicates(context.Background())
	assert.ErrorIs(t, err, common.ErrScanInProgress)
	e.guard.Unlock()

	_, err = e.CleanupDuplicates(context.Background())
	assert.NoError(t, err)
}

func TestEngine_IncrementalScanStartsAtLastSync(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewStaticSource(fixtureMessages()...)
	e, db := newTestEngine(t, src, DefaultConfig())

	_, err := e.Scan(ctx, nil)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Incremental = true
	later := now.Add(time.Hour)
	inc := NewWithConfig(src, db.Storage, cfg)
	inc.SetClock(func() time.Time { return later })

	result, err := inc.Scan(ctx, nil)
	require.NoError(t, err)
	assert.True(t, src.LastSince().Equal(now))
	assert.Zero(t, result.Total)

	state, err := db.Storage.GetSyncState(ctx)
	require.NoError(t, err)
	assert.True(t, state.LastSyncAt.Equal(later))
	assert.True(t, state.LastFullSync.Equal(now), "incremental scan keeps the last full sync time")
}

type failingInsertStorage struct {
	*storage.SQLiteStorage
	failID string
}

func (f *failingInsertStorage) InsertTransaction(ctx context.Context, txn *model.Transaction) (bool, error) {
	if txn.MessageID == f.failID {
		return false, errors.New("constraint failed")
	}
	return f.SQLiteStorage.InsertTransaction(ctx, txn)
}

func TestEngine_ScanSkipsFailedWrites(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := &failingInsertStorage{SQLiteStorage: db.Storage, failID: "m1"}
	e := NewWithConfig(testutil.NewStaticSource(fixtureMessages()...), store, DefaultConfig())
	e.SetClock(fixedClock)

	result, err := e.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.StoreFailures)
	require.Len(t, result.Accepted, 2, "m4 is no longer a duplicate once m1 failed to store")
	assert.Equal(t, "m3", result.Accepted[0].MessageID)
	assert.Equal(t, "m4", result.Accepted[1].MessageID)
}

func TestEngine_CleanupDuplicates(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t, testutil.NewStaticSource(), DefaultConfig())

	at := time.Date(2024, 12, 25, 9, 0, 0, 0, time.Local)
	for i, id := range []string{"a", "b"} {
		db.MustInsertTransaction(model.Transaction{
			MessageID:          id,
			Amount:             decimal.RequireFromString("250.00"),
			MerchantRaw:        "SWIGGY",
			MerchantNormalized: "SWIGGY",
			BankName:           "HDFC Bank",
			TransactionDate:    at.Add(time.Duration(i) * time.Hour),
			Confidence:         0.5 + float64(i)*0.2,
		})
	}

	removed, err := e.CleanupDuplicates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	left, err := db.Storage.GetAllTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "b", left[0].MessageID)
}

func TestEngine_Exclusions(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t, testutil.NewStaticSource(fixtureMessages()...), DefaultConfig())

	result, err := e.Scan(ctx, nil)
	require.NoError(t, err)
	require.Len(t, result.Accepted, 2)

	assert.True(t, e.UpdateMerchantExclusion(ctx, "Zomato", true))
	assert.False(t, e.UpdateMerchantExclusion(ctx, "NEVER SEEN", true))

	txns, err := db.Storage.GetAllTransactions(ctx)
	require.NoError(t, err)

	kept := e.FilterByExclusions(ctx, txns)
	require.Len(t, kept, 1)
	assert.Equal(t, "SWIGGY BANGALORE", kept[0].MerchantNormalized)

	all, included, excluded := e.SeparateByInclusion(ctx, txns)
	assert.Len(t, all, 2)
	assert.Len(t, included, 1)
	require.Len(t, excluded, 1)
	assert.Equal(t, "ZOMATO", excluded[0].MerchantNormalized)
}

func TestWriteRejections(t *testing.T) {
	rejections := []model.Rejection{
		{MessageID: "m2", Sender: "PROMO", Body: "Track at www.example.com, now", Reason: sms.ReasonUnknownSender, Timestamp: now},
		{MessageID: "m5", Sender: "KOTAKB", Body: "Your OTP is 1234", Reason: sms.ReasonMissingReference, Timestamp: now},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRejections(&buf, "run-1", rejections))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, strings.Split(RejectionHeader, ","), records[0])
	assert.Equal(t, []string{"run-1", "m2", "2025-01-10T12:00:00Z", "PROMO", sms.ReasonUnknownSender, "Track at www.example.com, now"}, records[1])

	assert.Equal(t, map[string]int{sms.ReasonUnknownSender: 1, sms.ReasonMissingReference: 1}, ReasonCounts(rejections))
}
