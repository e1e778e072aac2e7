package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feeledger/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func intp(v int) *int { return &v }

func TestRepositoryGroupsAreTenantScoped(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now().UTC()

	g := core.Group{
		ID: uuid.NewString(), TenantID: "t1", Name: "Class A", Type: core.GroupTypeFee,
		FeeMode: core.ModeGroup, SalaryMode: core.ModeGroup,
		GroupFee: decimal.NewFromInt(2000), GroupSalary: decimal.Zero,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.CreateGroup(ctx, g))

	got, err := repo.GetGroup(ctx, "t1", g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Class A", got.Name)
	assert.True(t, got.GroupFee.Equal(decimal.NewFromInt(2000)))

	_, err = repo.GetGroup(ctx, "t2", g.ID)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindNotFound))

	others, err := repo.ListGroups(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestRepositoryMemberRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now().UTC()
	joined := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	no := int64(7)
	email := "a@example.com"

	m := core.Member{
		ID: uuid.NewString(), TenantID: "t1", GroupID: "g1", MemberNo: &no, Name: "Asha",
		Email: &email, JoiningDate: &joined,
		CustomFee: decimal.NewNullDecimal(decimal.RequireFromString("1500.50")),
		Hobbies:   []string{"chess", "music"}, CriteriaVal: true, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.CreateMember(ctx, m))

	got, err := repo.GetMember(ctx, "t1", m.ID)
	require.NoError(t, err)
	require.NotNil(t, got.MemberNo)
	assert.Equal(t, int64(7), *got.MemberNo)
	require.NotNil(t, got.Email)
	assert.Equal(t, email, *got.Email)
	assert.Nil(t, got.Phone)
	require.NotNil(t, got.JoiningDate)
	assert.True(t, got.JoiningDate.Equal(joined))
	assert.True(t, got.CustomFee.Valid)
	assert.Equal(t, "1500.5", got.CustomFee.Decimal.String())
	assert.False(t, got.Balance.Valid)
	assert.Equal(t, []string{"chess", "music"}, got.Hobbies)
	assert.True(t, got.CriteriaVal)
}

func TestRepositoryFinanceRecordsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, paid := range []int64{100, 200, 300} {
		created := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.CreateFinanceRecord(ctx, core.FinanceRecord{
			ID: uuid.NewString(), TenantID: "t1", MemberID: "m1", StructureID: "s1",
			StructureType: core.StructureFee, AmountExpected: decimal.NewFromInt(300),
			AmountPaid: decimal.NewFromInt(paid), Month: intp(4), Year: intp(2025),
			CreatedAt: created, UpdatedAt: created,
		}))
	}
	require.NoError(t, repo.CreateFinanceRecord(ctx, core.FinanceRecord{
		ID: uuid.NewString(), TenantID: "t1", MemberID: "m2", StructureID: "s1",
		StructureType: core.StructureSalary, AmountPaid: decimal.NewFromInt(9),
		CreatedAt: base, UpdatedAt: base,
	}))

	recs, err := repo.ListFinanceRecords(ctx, "t1", core.FinanceRecordFilter{MemberID: "m1"})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "300", recs[0].AmountPaid.String())
	assert.Equal(t, "100", recs[2].AmountPaid.String())

	salary, err := repo.ListFinanceRecords(ctx, "t1", core.FinanceRecordFilter{StructureType: core.StructureSalary})
	require.NoError(t, err)
	require.Len(t, salary, 1)
	assert.Nil(t, salary[0].Month)
	assert.Nil(t, salary[0].DueDate)

	window, err := repo.ListFinanceRecordsCreatedIn(ctx, "t1", core.DateRange{From: base.Add(30 * time.Minute), To: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "200", window[0].AmountPaid.String())
}

func TestRepositoryUpdateFinanceRecordMissing(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.UpdateFinanceRecord(context.Background(), core.FinanceRecord{ID: "nope", TenantID: "t1", StructureType: core.StructureFee})
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now().UTC()
	boom := errors.New("boom")

	err := repo.WithTx(ctx, func(q *Queries) error {
		if err := q.CreateAttendance(ctx, core.Attendance{ID: "a1", TenantID: "t1", GroupID: "g1", Date: now, CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	items, err := repo.ListAttendance(ctx, "t1", core.DateRange{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDeleteTenantDataKeepsOtherTenants(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now().UTC()

	for _, tenant := range []string{"t1", "t2"} {
		require.NoError(t, repo.CreateUser(ctx, core.User{ID: uuid.NewString(), TenantID: tenant, Name: "u", IsActive: true, CreatedAt: now, UpdatedAt: now}))
		require.NoError(t, repo.CreateStructure(ctx, core.Structure{ID: uuid.NewString(), TenantID: tenant, Type: core.StructureFee, Name: "Tuition", Amount: decimal.NewFromInt(10), CreatedAt: now, UpdatedAt: now}))
	}

	var deleted int64
	require.NoError(t, repo.WithTx(ctx, func(q *Queries) error {
		var err error
		deleted, err = q.DeleteTenantData(ctx, "t1")
		return err
	}))
	assert.Equal(t, int64(2), deleted)

	users, err := repo.ListUsers(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, users)

	kept, err := repo.ListStructures(ctx, "t2", core.StructureFee)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestOwnedIDsAreTenantScoped(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now().UTC()

	for _, id := range []string{"u1", "u2"} {
		require.NoError(t, repo.CreateUser(ctx, core.User{ID: id, TenantID: "t1", Name: "u", IsActive: true, CreatedAt: now, UpdatedAt: now}))
	}
	require.NoError(t, repo.CreateUser(ctx, core.User{ID: "u3", TenantID: "t2", Name: "u", IsActive: true, CreatedAt: now, UpdatedAt: now}))

	var ids map[string]bool
	require.NoError(t, repo.WithTx(ctx, func(q *Queries) error {
		var err error
		ids, err = q.OwnedIDs(ctx, "t1", "users")
		return err
	}))
	assert.Equal(t, map[string]bool{"u1": true, "u2": true}, ids)

	err := repo.WithTx(ctx, func(q *Queries) error {
		_, err := q.OwnedIDs(ctx, "t1", "tenants")
		return err
	})
	assert.Error(t, err)
}
