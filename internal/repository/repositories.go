package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned by every store when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write lost a race with another writer.
	ErrConflict = errors.New("record was modified concurrently")
	// ErrDuplicate is returned on unique constraint violations.
	ErrDuplicate = errors.New("duplicate record")
)

// Repositories holds all repository instances
type Repositories struct {
	// Admin store, always SQL
	User         UserRepository
	RefreshToken RefreshTokenRepository
	Notification NotificationRepository
	Audit        AuditRepository
	Analytics    AnalyticsRepository

	// Loan store, SQL or MongoDB
	Client   ClientRepository
	Payment  PaymentRepository
	Note     NoteRepository
	Document DocumentRepository

	loanStore *LoanStore
}

// LoanStore groups the repositories that hold borrower data. It can be backed
// by gorm or MongoDB.
type LoanStore struct {
	Name     string
	Client   ClientRepository
	Payment  PaymentRepository
	Note     NoteRepository
	Document DocumentRepository
	Ping     func(ctx context.Context) error
}

// NewGormLoanStore creates the SQL-backed loan store
func NewGormLoanStore(db *gorm.DB) *LoanStore {
	return &LoanStore{
		Name:     "sql",
		Client:   NewClientRepository(db),
		Payment:  NewPaymentRepository(db),
		Note:     NewNoteRepository(db),
		Document: NewDocumentRepository(db),
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
}

// NewRepositories creates all repository instances. A nil loan store means
// the loan data lives in the same SQL database as the admin data.
func NewRepositories(db *gorm.DB, loans *LoanStore) *Repositories {
	if loans == nil {
		loans = NewGormLoanStore(db)
	}
	return &Repositories{
		User:         NewUserRepository(db),
		RefreshToken: NewRefreshTokenRepository(db),
		Notification: NewNotificationRepository(db),
		Audit:        NewAuditRepository(db),
		Analytics:    NewAnalyticsRepository(db),
		Client:       loans.Client,
		Payment:      loans.Payment,
		Note:         loans.Note,
		Document:     loans.Document,
		loanStore:    loans,
	}
}

// PingLoanStore checks the loan store connection
func (r *Repositories) PingLoanStore(ctx context.Context) error {
	if r.loanStore == nil || r.loanStore.Ping == nil {
		return nil
	}
	return r.loanStore.Ping(ctx)
}

// LoanStoreName reports which backend holds the loan data
func (r *Repositories) LoanStoreName() string {
	if r.loanStore == nil {
		return ""
	}
	return r.loanStore.Name
}

// ListQuery represents common query parameters
type ListQuery struct {
	Page    int
	PerPage int
	Search  string
	SortBy  string
	SortDir string
	Filters map[string]string
}

// NewListQuery creates a ListQuery with defaults
func NewListQuery() *ListQuery {
	return &ListQuery{
		Page:    1,
		PerPage: 20,
		Filters: make(map[string]string),
	}
}

// Offset returns the number of rows to skip for the current page
func (q *ListQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PerPage
}

// OrderBy returns a safe ORDER BY clause, falling back to def when SortBy is not in allowed.
func (q *ListQuery) OrderBy(allowed map[string]string, def string) string {
	column, ok := allowed[q.SortBy]
	if !ok {
		return def
	}
	if q.SortDir == "desc" {
		return column + " DESC"
	}
	return column + " ASC"
}

// translate maps driver errors onto the repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if isDuplicateKeyError(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
