// Package report aggregates stored transactions into spending summaries.
// Every aggregate is computed after the exclusion filter.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-sms/internal/exclusion"
	"github.com/Veraticus/spice-sms/internal/model"
	"github.com/Veraticus/spice-sms/internal/service"
)

// Options bounds a report. A zero Start or End leaves that side open.
type Options struct {
	Start        time.Time
	End          time.Time
	Location     *time.Location
	TopMerchants int
}

// CategoryTotal is the debit spend of one category.
type CategoryTotal struct {
	Total decimal.Decimal
	Name  string
	Emoji string
	Share float64
	Count int
}

// MerchantTotal is the debit spend at one merchant.
type MerchantTotal struct {
	Total    decimal.Decimal
	Merchant string
	Count    int
}

// MonthTotal is spend and income for one calendar month.
type MonthTotal struct {
	Spent    decimal.Decimal
	Received decimal.Decimal
	Month    string
}

// Summary is a complete report.
type Summary struct {
	Start         time.Time
	End           time.Time
	TotalSpent    decimal.Decimal
	TotalReceived decimal.Decimal
	Net           decimal.Decimal
	ExcludedSpent decimal.Decimal
	Categories    []CategoryTotal
	Merchants     []MerchantTotal
	Months        []MonthTotal
	Count         int
	ExcludedCount int
}

// Generator loads transactions and builds summaries.
type Generator struct {
	transactions service.TransactionStore
	categories   service.CategoryStore
	exclusions   *exclusion.Filter
}

// NewGenerator creates a generator.
func NewGenerator(transactions service.TransactionStore, categories service.CategoryStore, exclusions *exclusion.Filter) *Generator {
	return &Generator{transactions: transactions, categories: categories, exclusions: exclusions}
}

// Generate builds a summary for opts.
func (g *Generator) Generate(ctx context.Context, opts Options) (*Summary, error) {
	var (
		txns []model.Transaction
		err  error
	)
	if opts.Start.IsZero() && opts.End.IsZero() {
		txns, err = g.transactions.GetAllTransactions(ctx)
	} else {
		start, end := opts.Start, opts.End
		if end.IsZero() {
			end = time.Now()
		}
		txns, err = g.transactions.GetTransactionsByDateRange(ctx, start, end)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	categories, err := g.categories.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	included, excluded := exclusion.Split(g.exclusions.Resolve(ctx), txns)
	summary := Build(included, categories, opts)
	summary.ExcludedCount = len(excluded)
	for _, t := range excluded {
		if t.IsDebit {
			summary.ExcludedSpent = summary.ExcludedSpent.Add(t.Amount)
		}
	}
	return summary, nil
}

// Build aggregates already-filtered transactions.
func Build(txns []model.Transaction, categories []model.Category, opts Options) *Summary {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	byID := make(map[int64]model.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	s := &Summary{
		Start:         opts.Start,
		End:           opts.End,
		TotalSpent:    decimal.Zero,
		TotalReceived: decimal.Zero,
		ExcludedSpent: decimal.Zero,
		Count:         len(txns),
	}

	cats := make(map[string]*CategoryTotal)
	merchants := make(map[string]*MerchantTotal)
	months := make(map[string]*MonthTotal)

	for _, t := range txns {
		month := t.TransactionDate.In(loc).Format("2006-01")
		mt, ok := months[month]
		if !ok {
			mt = &MonthTotal{Month: month, Spent: decimal.Zero, Received: decimal.Zero}
			months[month] = mt
		}

		if !t.IsDebit {
			s.TotalReceived = s.TotalReceived.Add(t.Amount)
			mt.Received = mt.Received.Add(t.Amount)
			continue
		}

		s.TotalSpent = s.TotalSpent.Add(t.Amount)
		mt.Spent = mt.Spent.Add(t.Amount)

		cat, ok := byID[t.CategoryID]
		if !ok {
			cat = model.Category{Name: model.CategoryOther}
		}
		ct, ok := cats[cat.Name]
		if !ok {
			ct = &CategoryTotal{Name: cat.Name, Emoji: cat.Emoji, Total: decimal.Zero}
			cats[cat.Name] = ct
		}
		ct.Total = ct.Total.Add(t.Amount)
		ct.Count++

		m, ok := merchants[t.MerchantNormalized]
		if !ok {
			m = &MerchantTotal{Merchant: t.MerchantNormalized, Total: decimal.Zero}
			merchants[t.MerchantNormalized] = m
		}
		m.Total = m.Total.Add(t.Amount)
		m.Count++
	}

	s.Net = s.TotalReceived.Sub(s.TotalSpent)

	for _, ct := range cats {
		if s.TotalSpent.IsPositive() {
			ct.Share = ct.Total.Div(s.TotalSpent).InexactFloat64()
		}
		s.Categories = append(s.Categories, *ct)
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		if c := s.Categories[i].Total.Cmp(s.Categories[j].Total); c != 0 {
			return c > 0
		}
		return s.Categories[i].Name < s.Categories[j].Name
	})

	for _, m := range merchants {
		s.Merchants = append(s.Merchants, *m)
	}
	sort.Slice(s.Merchants, func(i, j int) bool {
		if c := s.Merchants[i].Total.Cmp(s.Merchants[j].Total); c != 0 {
			return c > 0
		}
		return s.Merchants[i].Merchant < s.Merchants[j].Merchant
	})
	if opts.TopMerchants > 0 && len(s.Merchants) > opts.TopMerchants {
		s.Merchants = s.Merchants[:opts.TopMerchants]
	}

	for _, mt := range months {
		s.Months = append(s.Months, *mt)
	}
	sort.Slice(s.Months, func(i, j int) bool { return s.Months[i].Month < s.Months[j].Month })

	return s
}
