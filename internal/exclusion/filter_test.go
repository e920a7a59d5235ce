package exclusion

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
	"github.com/Veraticus/spice-sms/internal/testutil"
)

type mockPreferenceStore struct {
	mock.Mock
}

func (m *mockPreferenceStore) GetPreferences(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(map[string]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPreferenceStore) GetPreference(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func tx(id, normalized, raw string) model.Transaction {
	return model.Transaction{
		MessageID:          id,
		Amount:             decimal.NewFromInt(100),
		MerchantNormalized: normalized,
		MerchantRaw:        raw,
		BankName:           "HDFC Bank",
		TransactionDate:    time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC),
		Confidence:         0.7,
		IsDebit:            true,
	}
}

func sampleTransactions() []model.Transaction {
	return []model.Transaction{
		tx("1", "SWIGGY BANGALORE", "SWIGGY BANGALORE"),
		tx("2", "UBER", "UBER"),
		tx("3", "NETFLIX", "NETFLIX*SUBSCR"),
		tx("4", "ZOMATO", "ZOMATO"),
	}
}

func ids(txns []model.Transaction) []string {
	out := make([]string, 0, len(txns))
	for _, t := range txns {
		out = append(out, t.MessageID)
	}
	return out
}

func TestFilter_ExcludedInAnySource(t *testing.T) {
	tests := []struct {
		name        string
		opts        testutil.TestDBOptions
		wantRemoved []string
	}{
		{
			name:        "nothing excluded",
			wantRemoved: nil,
		},
		{
			name: "primary flag",
			opts: testutil.TestDBOptions{Merchants: []model.Merchant{
				{NormalizedName: "SWIGGY BANGALORE", Excluded: true},
				{NormalizedName: "UBER"},
			}},
			wantRemoved: []string{"1"},
		},
		{
			name:        "legacy flat only",
			opts:        testutil.TestDBOptions{Preferences: map[string]string{"exclude_merchant_UBER": "true", "exclude_merchant_ZOMATO": "false"}},
			wantRemoved: []string{"2"},
		},
		{
			name:        "legacy blob only",
			opts:        testutil.TestDBOptions{Preferences: map[string]string{BlobKey: `{"ZOMATO": false, "UBER": true}`}},
			wantRemoved: []string{"4"},
		},
		{
			name:        "raw merchant form",
			opts:        testutil.TestDBOptions{Preferences: map[string]string{"exclude_merchant_netflix*subscr": "1"}},
			wantRemoved: []string{"3"},
		},
		{
			name: "union of all three",
			opts: testutil.TestDBOptions{
				Merchants:   []model.Merchant{{NormalizedName: "SWIGGY BANGALORE", Excluded: true}},
				Preferences: map[string]string{"exclude_merchant_UBER": "yes", BlobKey: `{"ZOMATO": {"excluded": true}}`},
			},
			wantRemoved: []string{"1", "2", "4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			db := testutil.SetupTestDBWithOptions(t, tt.opts)
			f := NewFilter(db.Storage, db.Storage)

			input := sampleTransactions()
			all, included, excluded := Separate(ctx, f, input)
			assert.Equal(t, input, all)
			assert.ElementsMatch(t, tt.wantRemoved, ids(excluded))
			assert.Len(t, included, len(input)-len(tt.wantRemoved))

			kept := Apply(ctx, f, input)
			assert.Equal(t, included, kept)
			for _, id := range tt.wantRemoved {
				assert.NotContains(t, ids(kept), id)
			}
		})
	}
}

func TestFilter_FailOpen(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	prefs := new(mockPreferenceStore)
	prefs.On("GetPreferences", mock.Anything).Return(nil, errors.New("corrupt preferences"))
	prefs.On("GetPreference", mock.Anything, BlobKey).Return("", errors.New("corrupt preferences"))

	f := NewFilter(db.Storage, prefs)
	input := sampleTransactions()

	assert.Equal(t, input, Apply(ctx, f, input))
	assert.False(t, f.IsExcluded(ctx, "UBER"))

	dump := f.Dump(ctx)
	require.Len(t, dump, 3)
	assert.True(t, dump[0].OK())
	assert.False(t, dump[1].OK())
	assert.False(t, dump[2].OK())
	prefs.AssertExpectations(t)
}

func TestFilter_FailOpenKeepsHealthySources(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDBWithOptions(t, testutil.TestDBOptions{
		Merchants: []model.Merchant{{NormalizedName: "UBER", Excluded: true}},
	})

	prefs := new(mockPreferenceStore)
	prefs.On("GetPreferences", mock.Anything).Return(nil, errors.New("gone"))
	prefs.On("GetPreference", mock.Anything, BlobKey).Return(`{not json`, nil)

	f := NewFilter(db.Storage, prefs)
	kept := Apply(ctx, f, sampleTransactions())
	assert.ElementsMatch(t, []string{"1", "3", "4"}, ids(kept))
}

func TestFilter_MissingBlobIsNotAnError(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := NewFilter(db.Storage, db.Storage)

	for _, r := range f.Dump(context.Background()) {
		assert.True(t, r.OK(), r.Name)
		assert.Empty(t, r.Merchants, r.Name)
	}
}

func TestFilter_UpdateExclusion(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDBWithOptions(t, testutil.TestDBOptions{
		Merchants: []model.Merchant{{NormalizedName: "ZOMATO"}},
	})
	f := NewFilter(db.Storage, db.Storage)

	assert.False(t, f.IsExcluded(ctx, "ZOMATO"))
	assert.True(t, f.UpdateExclusion(ctx, "zomato", true))
	assert.True(t, f.IsExcluded(ctx, "ZOMATO"))

	dump := f.Dump(ctx)
	assert.Equal(t, []string{"ZOMATO"}, dump[0].Merchants)

	assert.True(t, f.UpdateExclusion(ctx, "ZOMATO", false))
	assert.False(t, f.IsExcluded(ctx, "ZOMATO"))

	assert.False(t, f.UpdateExclusion(ctx, "NOBODY", true))
	assert.False(t, f.UpdateExclusion(ctx, "   ", true))
}

func TestFilter_LegacyExclusionCannotBeOverridden(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDBWithOptions(t, testutil.TestDBOptions{
		Merchants:   []model.Merchant{{NormalizedName: "UBER"}},
		Preferences: map[string]string{"exclude_merchant_UBER": "true"},
	})
	f := NewFilter(db.Storage, db.Storage)

	assert.True(t, f.UpdateExclusion(ctx, "UBER", false))
	assert.True(t, f.IsExcluded(ctx, "UBER"))
}

func TestKeep_Candidates(t *testing.T) {
	set := NewSet("SWIGGY")
	candidates := []model.Candidate{
		{MessageID: "a", MerchantNormalized: "SWIGGY", MerchantRaw: "swiggy*order"},
		{MessageID: "b", MerchantNormalized: "OLA", MerchantRaw: "OLA"},
	}

	kept := Keep(set, candidates)
	require.Len(t, kept, 1)
	assert.Equal(t, "b", kept[0].MessageID)
}
