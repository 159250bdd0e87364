//go:build integration

package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/mediatheque/internal/config"
	"github.com/segyhp/mediatheque/internal/domain"
	"github.com/segyhp/mediatheque/internal/logging"
	"github.com/segyhp/mediatheque/internal/notification"
	"github.com/segyhp/mediatheque/internal/repository"
	"github.com/segyhp/mediatheque/internal/service"
	customError "github.com/segyhp/mediatheque/pkg/errors"
	"github.com/segyhp/mediatheque/pkg/retry"
)

var testDB *sqlx.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		fmt.Println("TEST_DATABASE_URL not set, skipping service integration tests")
		os.Exit(0)
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to test database: %v", err))
	}
	testDB = db

	sqlBytes, err := os.ReadFile("../../scripts/init.sql")
	if err != nil {
		panic(fmt.Sprintf("Failed to read init.sql: %v", err))
	}
	testDB.MustExec(string(sqlBytes))

	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	loans   *service.LoanService
	catalog *service.CatalogService
	clock   *stubClock
}

func setup(t *testing.T) *fixture {
	t.Helper()
	testDB.MustExec("DELETE FROM fines")
	testDB.MustExec("DELETE FROM loans")
	testDB.MustExec("DELETE FROM members")
	testDB.MustExec("DELETE FROM documents")

	logger := logging.Discard()
	policy := service.Policy{
		LoanDurationDays:       21,
		MaxConcurrentLoans:     5,
		LateFeePerDay:          decimal.RequireFromString("0.20"),
		LostFee:                decimal.RequireFromString("25.00"),
		SubscriptionNoticeDays: 7,
		NotificationTimeout:    time.Second,
	}
	dispatcher, err := notification.New(config.NotificationConfig{LibraryName: "Test", Timeout: time.Second},
		policy.LateFeePerDay, time.UTC, logger)
	require.NoError(t, err)

	documents := repository.NewDocumentRepository(testDB)
	members := repository.NewMemberRepository(testDB)
	clock := &stubClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}

	loans := service.NewLoanService(
		service.Repositories{
			Documents: documents,
			Members:   members,
			Loans:     repository.NewLoanRepository(testDB),
			Fines:     repository.NewFineRepository(testDB),
		},
		repository.NewTransactor(testDB),
		dispatcher,
		policy,
		logger,
		service.WithClock(clock),
	)
	t.Cleanup(loans.Wait)

	return &fixture{
		loans:   loans,
		catalog: service.NewCatalogService(documents, members),
		clock:   clock,
	}
}

func (f *fixture) document(t *testing.T) *domain.Document {
	t.Helper()
	doc, err := f.catalog.CreateDocument(context.Background(), &domain.CreateDocumentRequest{
		Title:     "Vingt mille lieues sous les mers",
		ShelfMark: "R VER",
		Type:      domain.DocumentTypeBook,
	})
	require.NoError(t, err)
	return doc
}

func (f *fixture) member(t *testing.T, name string) *domain.Member {
	t.Helper()
	member, err := f.catalog.CreateMember(context.Background(), &domain.CreateMemberRequest{
		FirstName:          name,
		LastName:           "Test",
		Email:              name + "@example.org",
		SubscriptionActive: true,
	})
	require.NoError(t, err)
	return member
}

func TestCreateLoan_ConcurrentRequestsYieldOneLoan(t *testing.T) {
	f := setup(t)
	doc := f.document(t)

	const workers = 8
	members := make([]*domain.Member, workers)
	for i := range members {
		members[i] = f.member(t, fmt.Sprintf("reader%d", i))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		refusals  int
		others    []error
	)
	start := make(chan struct{})

	for _, member := range members {
		wg.Add(1)
		go func(m domain.Member) {
			defer wg.Done()
			<-start

			err := retry.Do(context.Background(), func(ctx context.Context) error {
				_, err := f.loans.CreateLoan(ctx, doc.ID, m.ID)
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, customError.ErrDocumentUnavailable):
				refusals++
			default:
				others = append(others, err)
			}
		}(*member)
	}
	close(start)
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, refusals)

	open, total, err := f.loans.ListLoans(context.Background(), domain.LoanFilter{
		DocumentID: &doc.ID,
		Statuses:   domain.OpenLoanStatuses,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, open, 1)
}

func TestLoanLifecycle_Scenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	doc := f.document(t)
	member := f.member(t, "jeanne")

	loan, err := f.loans.CreateLoan(ctx, doc.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 22, 10, 0, 0, 0, time.UTC), loan.DueDate.UTC())

	// Swept the day after the due date.
	f.clock.Set(time.Date(2024, 1, 23, 10, 0, 0, 0, time.UTC))
	first, err := f.loans.OverdueSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Transitioned)

	second, err := f.loans.OverdueSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Transitioned)

	swept, err := f.loans.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusOverdue, swept.Status)

	eligibility, err := f.loans.CheckEligibility(ctx, member.ID)
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Equal(t, string(customError.ReasonHasOverdueLoans), eligibility.Reason)

	// Returned three days late.
	f.clock.Set(time.Date(2024, 1, 25, 10, 0, 0, 0, time.UTC))
	result, err := f.loans.ReturnLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, result.Late)
	assert.Equal(t, domain.LoanStatusReturnedLate, result.Loan.Status)

	_, err = f.loans.ReturnLoan(ctx, loan.ID)
	assert.True(t, errors.Is(err, customError.ErrAlreadyReturned))

	fines, _, err := f.loans.ListFines(ctx, member.ID, domain.FineFilter{})
	require.NoError(t, err)
	require.Len(t, fines, 1)
	assert.True(t, fines[0].Amount.Equal(decimal.RequireFromString("0.60")), fines[0].Amount.String())

	returned, err := f.catalog.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, returned.Available)

	third, err := f.loans.OverdueSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SweepReport{}, third)
}

func TestCreateLoan_QuotaAndUnavailable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	member := f.member(t, "paul")

	for i := 0; i < 5; i++ {
		_, err := f.loans.CreateLoan(ctx, f.document(t).ID, member.ID)
		require.NoError(t, err)
	}

	_, err := f.loans.CreateLoan(ctx, f.document(t).ID, member.ID)
	reason, ok := customError.ReasonOf(err)
	require.True(t, ok, "expected ineligibility, got %v", err)
	assert.Equal(t, customError.ReasonLoanQuotaReached, reason)

	doc := f.document(t)
	other := f.member(t, "louise")
	_, err = f.loans.CreateLoan(ctx, doc.ID, other.ID)
	require.NoError(t, err)

	_, err = f.loans.CreateLoan(ctx, doc.ID, f.member(t, "marc").ID)
	assert.True(t, errors.Is(err, customError.ErrDocumentUnavailable))

	loans, _, err := f.loans.ListLoans(ctx, domain.LoanFilter{DocumentID: &doc.ID})
	require.NoError(t, err)
	assert.Len(t, loans, 1)
}

func TestRenewLoan_Once(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	loan, err := f.loans.CreateLoan(ctx, f.document(t).ID, f.member(t, "anne").ID)
	require.NoError(t, err)

	renewed, err := f.loans.RenewLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, renewed.Extended)
	assert.True(t, renewed.DueDate.After(loan.DueDate))

	_, err = f.loans.RenewLoan(ctx, loan.ID)
	assert.True(t, errors.Is(err, customError.ErrLoanNotRenewable))
}

func TestDeclareLost_ThenRestore(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	doc := f.document(t)

	loan, err := f.loans.CreateLoan(ctx, doc.ID, f.member(t, "claire").ID)
	require.NoError(t, err)

	_, err = f.loans.RestoreDocument(ctx, doc.ID)
	assert.True(t, errors.Is(err, customError.ErrDocumentUnavailable))

	_, err = f.loans.DeclareLost(ctx, loan.ID)
	require.NoError(t, err)

	_, err = f.loans.CreateLoan(ctx, doc.ID, f.member(t, "hugo").ID)
	assert.True(t, errors.Is(err, customError.ErrDocumentUnavailable))

	restored, err := f.loans.RestoreDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, restored.Available)

	_, err = f.loans.CreateLoan(ctx, doc.ID, f.member(t, "hugo").ID)
	require.NoError(t, err)
}
