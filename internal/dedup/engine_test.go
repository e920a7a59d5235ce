package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-sms/internal/model"
	"github.com/Veraticus/spice-sms/internal/service"
	"github.com/Veraticus/spice-sms/internal/testutil"
)

var base = time.Date(2024, 12, 25, 13, 0, 0, 0, time.UTC)

type mockTransactionStore struct {
	mock.Mock
}

func (m *mockTransactionStore) InsertTransaction(ctx context.Context, txn *model.Transaction) (bool, error) {
	args := m.Called(ctx, txn)
	return args.Bool(0), args.Error(1)
}

func (m *mockTransactionStore) HasMessage(ctx context.Context, messageID string) (bool, error) {
	args := m.Called(ctx, messageID)
	return args.Bool(0), args.Error(1)
}

func (m *mockTransactionStore) FindSimilarTransactions(ctx context.Context, q service.SimilarQuery) ([]model.Transaction, error) {
	args := m.Called(ctx, q)
	if v := args.Get(0); v != nil {
		return v.([]model.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTransactionStore) DeleteTransaction(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTransactionStore) GetAllTransactions(ctx context.Context) ([]model.Transaction, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]model.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTransactionStore) GetTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]model.Transaction, error) {
	args := m.Called(ctx, start, end)
	if v := args.Get(0); v != nil {
		return v.([]model.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTransactionStore) UpdateTransactionCategoryForMerchant(ctx context.Context, merchant string, categoryID int64) (int64, error) {
	args := m.Called(ctx, merchant, categoryID)
	return args.Get(0).(int64), args.Error(1)
}

func txn(id string, amount string, at time.Time, confidence float64) model.Transaction {
	return model.Transaction{
		MessageID:          id,
		Amount:             decimal.RequireFromString(amount),
		MerchantRaw:        "SWIGGY BANGALORE",
		MerchantNormalized: "SWIGGY BANGALORE",
		BankName:           "HDFC Bank",
		TransactionDate:    at,
		Confidence:         confidence,
		IsDebit:            true,
	}
}

func candidate(id, amount string, at time.Time, bank string) *model.Candidate {
	return &model.Candidate{
		MessageID:          id,
		Amount:             decimal.RequireFromString(amount),
		MerchantRaw:        "SWIGGY BANGALORE",
		MerchantNormalized: "SWIGGY BANGALORE",
		BankName:           bank,
		Timestamp:          at,
		Confidence:         0.7,
		IsDebit:            true,
	}
}

func TestEngine_Check(t *testing.T) {
	db := testutil.SetupTestDB(t)
	db.MustInsertTransaction(txn("m1", "250.00", base, 0.7))

	e := NewEngine(db.Storage, Config{Location: time.UTC})

	tests := []struct {
		name      string
		candidate *model.Candidate
		want      bool
	}{
		{name: "close amount and time", candidate: candidate("m2", "250.50", base.Add(3*time.Minute), "HDFC Bank"), want: true},
		{name: "window edge", candidate: candidate("m2", "251.00", base.Add(-10*time.Minute), "HDFC Bank"), want: true},
		{name: "outside time window", candidate: candidate("m2", "250.00", base.Add(15*time.Minute), "HDFC Bank"), want: false},
		{name: "outside amount tolerance", candidate: candidate("m2", "252.00", base, "HDFC Bank"), want: false},
		{name: "different bank", candidate: candidate("m2", "250.00", base, "ICICI Bank"), want: false},
		{name: "same message is not a loose duplicate", candidate: candidate("m1", "250.00", base, "HDFC Bank"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := e.Check(context.Background(), tt.candidate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, outcome.Duplicate)
			if tt.want {
				require.NotNil(t, outcome.Match)
				assert.Equal(t, "m1", outcome.Match.MessageID)
			} else {
				assert.Nil(t, outcome.Match)
			}
		})
	}
}

func TestEngine_CheckStoreError(t *testing.T) {
	store := new(mockTransactionStore)
	store.On("FindSimilarTransactions", mock.Anything, mock.AnythingOfType("service.SimilarQuery")).
		Return(nil, errors.New("disk on fire"))

	e := NewEngine(store, DefaultConfig())
	_, err := e.Check(context.Background(), candidate("m2", "10.00", base, "HDFC Bank"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
	store.AssertExpectations(t)
}

func TestEngine_Cleanup(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	low := txn("m1", "250.00", base, 0.7)
	low.CreatedAt = base
	older := txn("m2", "250.00", base.Add(2*time.Hour), 0.9)
	older.CreatedAt = base.Add(time.Minute)
	newer := txn("m3", "250.00", base.Add(4*time.Hour), 0.9)
	newer.CreatedAt = base.Add(2 * time.Minute)
	otherDay := txn("m4", "250.00", base.Add(24*time.Hour), 0.5)
	otherAmount := txn("m5", "250.01", base, 0.5)

	for _, tx := range []model.Transaction{low, older, newer, otherDay, otherAmount} {
		db.MustInsertTransaction(tx)
	}

	e := NewEngine(db.Storage, Config{Location: time.UTC})
	removed, err := e.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	remaining, err := db.Storage.GetAllTransactions(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(remaining))
	for _, r := range remaining {
		ids = append(ids, r.MessageID)
	}
	assert.ElementsMatch(t, []string{"m3", "m4", "m5"}, ids)

	removed, err = e.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestEngine_CleanupSkipsFailedDeletes(t *testing.T) {
	a := txn("m1", "99.00", base, 0.5)
	a.ID = 1
	b := txn("m2", "99.00", base, 0.5)
	b.ID = 2
	c := txn("m3", "99.00", base, 0.9)
	c.ID = 3

	store := new(mockTransactionStore)
	store.On("GetAllTransactions", mock.Anything).Return([]model.Transaction{a, b, c}, nil)
	store.On("DeleteTransaction", mock.Anything, int64(1)).Return(errors.New("locked"))
	store.On("DeleteTransaction", mock.Anything, int64(2)).Return(nil)

	e := NewEngine(store, Config{Location: time.UTC})
	removed, err := e.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "DeleteTransaction", mock.Anything, int64(3))
}

func TestSurvivor(t *testing.T) {
	a := txn("a", "1.00", base, 0.8)
	a.ID, a.CreatedAt = 1, base
	b := txn("b", "1.00", base, 0.8)
	b.ID, b.CreatedAt = 2, base
	c := txn("c", "1.00", base, 0.8)
	c.ID, c.CreatedAt = 3, base.Add(-time.Second)

	assert.Equal(t, "b", Survivor([]model.Transaction{a, b, c}).MessageID, "equal confidence and time falls back to highest id")

	c.Confidence = 0.95
	assert.Equal(t, "c", Survivor([]model.Transaction{a, b, c}).MessageID)
}

func TestGroup_DayInLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	late := txn("late", "10.00", time.Date(2024, 12, 25, 20, 0, 0, 0, time.UTC), 0.5)
	early := txn("early", "10.00", time.Date(2024, 12, 26, 2, 0, 0, 0, time.UTC), 0.5)

	assert.Len(t, Group([]model.Transaction{late, early}, time.UTC), 2)
	assert.Len(t, Group([]model.Transaction{late, early}, ist), 1)
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(new(mockTransactionStore), Config{})
	cfg := e.Config()
	assert.True(t, decimal.NewFromInt(1).Equal(cfg.AmountTolerance))
	assert.Equal(t, 10*time.Minute, cfg.TimeWindow)
	assert.NotNil(t, cfg.Location)
}
