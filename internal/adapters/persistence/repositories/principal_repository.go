package repositories

import (
	"context"

	"energia-backend/internal/adapters/persistence/models"
	"energia-backend/internal/core/domain"

	"gorm.io/gorm"
)

const (
	studentIdentifierMatch = "UPPER(ktu_id) = UPPER(?) OR UPPER(username) = UPPER(?)"
	staffIdentifierMatch   = "UPPER(username) = UPPER(?)"
)

// principalRepository implements PrincipalRepository interface
type principalRepository struct {
	db *gorm.DB
}

// NewPrincipalRepository creates a new principal repository
func NewPrincipalRepository(db *gorm.DB) PrincipalRepository {
	return &principalRepository{db: db}
}

// FindByIdentifier gets a principal of the given kind.
// Students match on KTU ID or username, staff on username.
func (r *principalRepository) FindByIdentifier(ctx context.Context, kind domain.PrincipalKind, identifier string) (*domain.Principal, error) {
	if kind == domain.KindStudent {
		var rep models.ClassRepresentative
		err := r.db.WithContext(ctx).
			Where(studentIdentifierMatch, identifier, identifier).
			Order("id ASC").
			First(&rep).Error
		if err != nil {
			return nil, mapError(err, "user")
		}
		return rep.ToPrincipal(), nil
	}

	var user models.User
	err := r.db.WithContext(ctx).
		Where(staffIdentifierMatch, identifier).
		First(&user).Error
	if err != nil {
		return nil, mapError(err, "user")
	}
	return user.ToPrincipal(), nil
}

// StudentExists checks whether any student row holds the username, KTU ID or email
func (r *principalRepository) StudentExists(ctx context.Context, username, ktuID, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ClassRepresentative{}).
		Where("UPPER(username) = UPPER(?) OR UPPER(ktu_id) = UPPER(?) OR UPPER(email) = UPPER(?)", username, ktuID, email).
		Count(&count).Error
	if err != nil {
		return false, mapError(err, "")
	}
	return count > 0, nil
}

// StaffExists checks whether a users row holds the username
func (r *principalRepository) StaffExists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where(staffIdentifierMatch, username).
		Count(&count).Error
	if err != nil {
		return false, mapError(err, "")
	}
	return count > 0, nil
}

// Create inserts p into the table selected by its kind and sets p.ID
func (r *principalRepository) Create(ctx context.Context, p *domain.Principal) error {
	if p.Kind == domain.KindStudent {
		rep := models.ClassRepresentative{
			Username:     p.Username,
			PasswordHash: p.PasswordHash,
			KtuID:        p.KtuID,
			Email:        p.Email,
			Name:         p.Name,
			Department:   p.Department,
			Year:         p.Year,
			CreatedAt:    p.CreatedAt,
		}
		if err := r.db.WithContext(ctx).Create(&rep).Error; err != nil {
			return mapError(err, "")
		}
		p.ID = rep.ID
		return nil
	}

	user := models.User{
		Username:     p.Username,
		PasswordHash: p.PasswordHash,
		Role:         string(p.Role),
		Name:         p.Name,
		Department:   p.Department,
		CreatedAt:    p.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		return mapError(err, "")
	}
	p.ID = user.ID
	return nil
}

// UpdateCredential sets the password hash on every row of both tables matching identifier
func (r *principalRepository) UpdateCredential(ctx context.Context, identifier, passwordHash string) (int64, error) {
	students := r.db.WithContext(ctx).Model(&models.ClassRepresentative{}).
		Where(studentIdentifierMatch, identifier, identifier).
		Update("password_hash", passwordHash)
	if students.Error != nil {
		return 0, mapError(students.Error, "")
	}

	staff := r.db.WithContext(ctx).Model(&models.User{}).
		Where(staffIdentifierMatch, identifier).
		Update("password_hash", passwordHash)
	if staff.Error != nil {
		return 0, mapError(staff.Error, "")
	}

	return students.RowsAffected + staff.RowsAffected, nil
}

// ResetCredential replaces the password hash of one principal, and its display name when name is set
func (r *principalRepository) ResetCredential(ctx context.Context, kind domain.PrincipalKind, username, passwordHash, name string) (int64, error) {
	var result *gorm.DB
	updates := map[string]interface{}{"password_hash": passwordHash}
	if name != "" {
		updates["name"] = name
	}

	if kind == domain.KindStudent {
		result = r.db.WithContext(ctx).Model(&models.ClassRepresentative{}).
			Where(studentIdentifierMatch, username, username).
			Updates(updates)
	} else {
		result = r.db.WithContext(ctx).Model(&models.User{}).
			Where(staffIdentifierMatch, username).
			Updates(updates)
	}
	if result.Error != nil {
		return 0, mapError(result.Error, "")
	}
	return result.RowsAffected, nil
}

// UpdateStudentProfile updates the mutable profile fields of a student
func (r *principalRepository) UpdateStudentProfile(ctx context.Context, ktuID, name, department, year string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.ClassRepresentative{}).
		Where("UPPER(ktu_id) = UPPER(?)", ktuID).
		Updates(map[string]interface{}{
			"name":       name,
			"department": department,
			"year":       year,
		})
	if result.Error != nil {
		return 0, mapError(result.Error, "")
	}
	return result.RowsAffected, nil
}

// ListStaff lists users of one role ordered by name
func (r *principalRepository) ListStaff(ctx context.Context, role domain.Role, offset, limit int) ([]*domain.Principal, int64, error) {
	var users []*models.User
	var total int64

	query := r.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ?", string(role)).
		Session(&gorm.Session{})

	// Count total
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, mapError(err, "")
	}

	// Get users with pagination
	if err := query.Order("name ASC").Order("username ASC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, mapError(err, "")
	}

	principals := make([]*domain.Principal, 0, len(users))
	for _, u := range users {
		principals = append(principals, u.ToPrincipal())
	}
	return principals, total, nil
}

// ListStudents lists class representatives ordered by department, year and name
func (r *principalRepository) ListStudents(ctx context.Context, offset, limit int) ([]*domain.Principal, int64, error) {
	var reps []*models.ClassRepresentative
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ClassRepresentative{}).Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, mapError(err, "")
	}

	err := query.Order("department ASC").Order("year ASC").Order("name ASC").
		Offset(offset).Limit(limit).Find(&reps).Error
	if err != nil {
		return nil, 0, mapError(err, "")
	}

	principals := make([]*domain.Principal, 0, len(reps))
	for _, rep := range reps {
		principals = append(principals, rep.ToPrincipal())
	}
	return principals, total, nil
}

// Counts returns per-role totals
func (r *principalRepository) Counts(ctx context.Context) (PrincipalCounts, error) {
	var counts PrincipalCounts
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.User{}).Where("role = ?", string(domain.RoleCoordinator)).Count(&counts.Coordinators).Error; err != nil {
		return counts, mapError(err, "")
	}
	if err := db.Model(&models.User{}).Where("role = ?", string(domain.RoleAdmin)).Count(&counts.Admins).Error; err != nil {
		return counts, mapError(err, "")
	}
	if err := db.Model(&models.ClassRepresentative{}).Count(&counts.ClassRepresentatives).Error; err != nil {
		return counts, mapError(err, "")
	}
	return counts, nil
}

// Delete removes coordinators by username and students by username or KTU ID.
// Admin rows are never deleted.
func (r *principalRepository) Delete(ctx context.Context, identifier string) (int64, error) {
	staff := r.db.WithContext(ctx).
		Where(staffIdentifierMatch, identifier).
		Where("role = ?", string(domain.RoleCoordinator)).
		Delete(&models.User{})
	if staff.Error != nil {
		return 0, mapError(staff.Error, "")
	}

	students := r.db.WithContext(ctx).
		Where(studentIdentifierMatch, identifier, identifier).
		Delete(&models.ClassRepresentative{})
	if students.Error != nil {
		return 0, mapError(students.Error, "")
	}

	return staff.RowsAffected + students.RowsAffected, nil
}
