package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"triconnect/internal/model"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, name, email, phone, password_hash, role, sector,
	pref_email, pref_sms, pref_calendar,
	interest_college, interest_industry, interest_government,
	created_at
`

func scanUser(row interface{ Scan(dest ...any) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Role, &u.Sector,
		&u.Preferences.Email, &u.Preferences.SMS, &u.Preferences.Calendar,
		&u.Interests.College, &u.Interests.Industry, &u.Interests.Government,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user.
func (r *UserRepository) CreateUser(ctx context.Context, u *model.User) error {
	query := `
        INSERT INTO users (
            name, email, phone, password_hash, role, sector,
            pref_email, pref_sms, pref_calendar,
            interest_college, interest_industry, interest_government,
            created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
        RETURNING id
    `
	return r.db.QueryRow(ctx, query,
		u.Name, u.Email, u.Phone, u.PasswordHash, u.Role, u.Sector,
		u.Preferences.Email, u.Preferences.SMS, u.Preferences.Calendar,
		u.Interests.College, u.Interests.Industry, u.Interests.Government,
	).Scan(&u.ID)
}

// FindByEmail returns user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

// FindByID returns user by id.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// ListInterestedInSector returns all non-admin users following the given sector.
func (r *UserRepository) ListInterestedInSector(ctx context.Context, sector string) ([]*model.User, error) {
	var column string
	switch sector {
	case model.SectorCollege:
		column = "interest_college"
	case model.SectorIndustry:
		column = "interest_industry"
	case model.SectorGovernment:
		column = "interest_government"
	default:
		return nil, nil
	}

	// column 来自上面的白名单，不存在注入
	query := `SELECT ` + userColumns + ` FROM users WHERE role = 'user' AND ` + column + ` = TRUE`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
