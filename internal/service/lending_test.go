package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-library-api/internal/domain"
	"go-library-api/internal/repo"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestBorrowCreatesRecordAndDecrementsStock(t *testing.T) {
	db := newTestDB(t)
	svc := newLending(t, db, testNow)
	user := seedUser(t, db, "alice", domain.RoleUser)
	book := seedBook(t, db, "Dune", "Fiction", 3, 3)

	rec, err := svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, domain.BorrowStatusBorrowed, rec.Status)
	assert.Equal(t, testNow, rec.BorrowDate.UTC())
	assert.Equal(t, testNow.AddDate(0, 0, 14), rec.DueDate.UTC())
	assert.Nil(t, rec.ReturnDate)

	assert.Equal(t, 2, bookByID(t, db, book.ID).AvailableCopies)

	ids, err := repo.NewBorrowRepo(db).ActiveBookIDs(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{book.ID}, ids)
}

func TestBorrowMissingBook(t *testing.T) {
	db := newTestDB(t)
	svc := newLending(t, db, testNow)
	user := seedUser(t, db, "alice", domain.RoleUser)

	_, err := svc.Borrow(context.Background(), user.ID, "no-such-book")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestBorrowSameBookTwiceFails(t *testing.T) {
	db := newTestDB(t)
	svc := newLending(t, db, testNow)
	user := seedUser(t, db, "alice", domain.RoleUser)
	book := seedBook(t, db, "Dune", "Fiction", 3, 3)

	_, err := svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)

	// 重复借阅必须显式失败，静默成功会掩盖重复扣库存
	_, err = svc.Borrow(context.Background(), user.ID, book.ID)
	assert.ErrorIs(t, err, ErrAlreadyBorrowed)
	assert.Equal(t, 2, bookByID(t, db, book.ID).AvailableCopies)
}

func TestBorrowLastCopy(t *testing.T) {
	db := newTestDB(t)
	svc := newLending(t, db, testNow)
	alice := seedUser(t, db, "alice", domain.RoleUser)
	bob := seedUser(t, db, "bob", domain.RoleUser)
	book := seedBook(t, db, "Dune", "Fiction", 1, 1)

	_, err := svc.Borrow(context.Background(), alice.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, bookByID(t, db, book.ID).AvailableCopies)

	_, err = svc.Borrow(context.Background(), bob.ID, book.ID)
	assert.ErrorIs(t, err, ErrBookUnavailable)
	assert.Equal(t, 0, bookByID(t, db, book.ID).AvailableCopies)
}

func TestConcurrentBorrowLastCopy(t *testing.T) {
	db := newTestDB(t)
	svc := newLending(t, db, testNow)
	book := seedBook(t, db, "Dune", "Fiction", 1, 1)
	users := []*domain.User{
		seedUser(t, db, "alice", domain.RoleUser),
		seedUser(t, db, "bob", domain.RoleUser),
	}

	errs := make(chan error, len(users))
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_, err := svc.Borrow(context.Background(), uid, book.ID)
			errs <- err
		}(u.ID)
	}
	wg.Wait()
	close(errs)

	var wins, losses int
	for err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrBookUnavailable)
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
	assert.Equal(t, 0, bookByID(t, db, book.ID).AvailableCopies)
}

func TestReturnRestoresStock(t *testing.T) {
	db := newTestDB(t)
	svc := newLending(t, db, testNow)
	alice := seedUser(t, db, "alice", domain.RoleUser)
	bob := seedUser(t, db, "bob", domain.RoleUser)
	book := seedBook(t, db, "Dune", "Fiction", 1, 1)

	_, err := svc.Borrow(context.Background(), alice.ID, book.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Return(context.Background(), alice.ID, book.ID))

	assert.Equal(t, 1, bookByID(t, db, book.ID).AvailableCopies)

	var rec domain.BorrowRecord
	require.NoError(t, db.First(&rec, "user_id = ? AND book_id = ?", alice.ID, book.ID).Error)
	assert.Equal(t, domain.BorrowStatusReturned, rec.Status)
	require.NotNil(t, rec.ReturnDate)
	assert.Equal(t, testNow, rec.ReturnDate.UTC())

	ids, err := repo.NewBorrowRepo(db).ActiveBookIDs(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	// 书回架后别人可以借走
	_, err = svc.Borrow(context.Background(), bob.ID, book.ID)
	assert.NoError(t, err)
}

func TestReturnWithoutLoan(t *testing.T) {
	db := newTestDB(t)
	svc := newLending(t, db, testNow)
	user := seedUser(t, db, "alice", domain.RoleUser)
	book := seedBook(t, db, "Dune", "Fiction", 1, 1)

	err := svc.Return(context.Background(), user.ID, book.ID)
	assert.ErrorIs(t, err, ErrNoActiveLoan)
}

func TestReturnTwiceDoesNotDoubleIncrement(t *testing.T) {
	db := newTestDB(t)
	svc := newLending(t, db, testNow)
	user := seedUser(t, db, "alice", domain.RoleUser)
	book := seedBook(t, db, "Dune", "Fiction", 2, 2)

	_, err := svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Return(context.Background(), user.ID, book.ID))

	err = svc.Return(context.Background(), user.ID, book.ID)
	assert.ErrorIs(t, err, ErrNoActiveLoan)
	assert.Equal(t, 2, bookByID(t, db, book.ID).AvailableCopies)
}

func TestReborrowAfterReturnKeepsHistory(t *testing.T) {
	db := newTestDB(t)
	svc := newLending(t, db, testNow)
	user := seedUser(t, db, "alice", domain.RoleUser)
	book := seedBook(t, db, "Dune", "Fiction", 1, 1)

	_, err := svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Return(context.Background(), user.ID, book.ID))

	// 同一对 (user, book) 允许再次借出，历史记录累积
	_, err = svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)

	var total int64
	require.NoError(t, db.Model(&domain.BorrowRecord{}).
		Where("user_id = ? AND book_id = ?", user.ID, book.ID).
		Count(&total).Error)
	assert.EqualValues(t, 2, total)

	var active int64
	require.NoError(t, db.Model(&domain.BorrowRecord{}).
		Where("user_id = ? AND book_id = ? AND status = ?", user.ID, book.ID, domain.BorrowStatusBorrowed).
		Count(&active).Error)
	assert.EqualValues(t, 1, active)
}

func TestBorrowedBooksView(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "alice", domain.RoleUser)
	dune := seedBook(t, db, "Dune", "Fiction", 1, 0)
	hobbit := seedBook(t, db, "The Hobbit", "Fiction", 1, 0)

	// 一条刚好还剩 2 天，一条已逾期 5 天
	seedRecord(t, db, user.ID, dune.ID, testNow.AddDate(0, 0, -12), testNow.AddDate(0, 0, 2), domain.BorrowStatusBorrowed, nil)
	seedRecord(t, db, user.ID, hobbit.ID, testNow.AddDate(0, 0, -19), testNow.AddDate(0, 0, -5), domain.BorrowStatusBorrowed, nil)

	svc := newLending(t, db, testNow)
	out, err := svc.BorrowedBooks(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, out, 2)

	// 按借出时间倒序：Dune 在前
	assert.Equal(t, "Dune", out[0].Book.Title)
	assert.False(t, out[0].IsOverdue)
	assert.InDelta(t, 2, out[0].DaysUntilDue, 0.001)

	assert.Equal(t, "The Hobbit", out[1].Book.Title)
	assert.True(t, out[1].IsOverdue)
	assert.InDelta(t, -5, out[1].DaysUntilDue, 0.001)
}

func TestDueBoundary(t *testing.T) {
	rec := domain.BorrowRecord{Status: domain.BorrowStatusBorrowed, DueDate: testNow}

	// 恰好到期：不算逾期，剩余 0 天
	assert.False(t, rec.IsOverdue(testNow))
	assert.Equal(t, 0.0, rec.DaysUntilDue(testNow))

	// 过期一毫秒即算逾期
	later := testNow.Add(time.Millisecond)
	assert.True(t, rec.IsOverdue(later))
	assert.Negative(t, rec.DaysUntilDue(later))
}

func TestOverdueBooksView(t *testing.T) {
	db := newTestDB(t)
	alice := seedUser(t, db, "alice", domain.RoleUser)
	bob := seedUser(t, db, "bob", domain.RoleUser)
	dune := seedBook(t, db, "Dune", "Fiction", 1, 0)
	hobbit := seedBook(t, db, "The Hobbit", "Fiction", 1, 0)

	seedRecord(t, db, alice.ID, dune.ID, testNow.AddDate(0, 0, -19), testNow.AddDate(0, 0, -5), domain.BorrowStatusBorrowed, nil)
	seedRecord(t, db, bob.ID, hobbit.ID, testNow.AddDate(0, 0, -16), testNow.AddDate(0, 0, -2), domain.BorrowStatusBorrowed, nil)
	// 未逾期和已归还的不应出现
	seedRecord(t, db, bob.ID, dune.ID, testNow, testNow.AddDate(0, 0, 14), domain.BorrowStatusBorrowed, nil)
	ret := testNow.AddDate(0, 0, -1)
	seedRecord(t, db, alice.ID, hobbit.ID, testNow.AddDate(0, 0, -30), testNow.AddDate(0, 0, -16), domain.BorrowStatusReturned, &ret)

	svc := newLending(t, db, testNow)
	out, err := svc.OverdueBooks(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)

	// 按到期时间升序：逾期最久的在前
	assert.Equal(t, "Dune", out[0].Book.Title)
	assert.Equal(t, "alice", out[0].User.Name)
	assert.InDelta(t, 5, out[0].DaysOverdue, 0.001)
	assert.Equal(t, "The Hobbit", out[1].Book.Title)
	assert.InDelta(t, 2, out[1].DaysOverdue, 0.001)
}
