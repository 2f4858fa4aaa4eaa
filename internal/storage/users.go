package storage

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"medical-book/internal/models"
)

const MinPasswordLength = 6

func validatePassword(field, password string) error {
	switch {
	case password == "":
		return invalid(field, "is required")
	case len(password) < MinPasswordLength:
		return invalid(field, "must be at least 6 characters")
	case len(password) > 72:
		return invalid(field, "must be at most 72 bytes")
	}
	return nil
}

func (s *Store) hashPassword(field, password string) (string, error) {
	if err := validatePassword(field, password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", s.translate("hash password", err)
	}
	return string(hash), nil
}

// CreateUser stores a new account. The password is only ever kept as a bcrypt
// hash. A taken email yields ErrDuplicateEmail.
func (s *Store) CreateUser(ctx context.Context, in models.NewUser) (*models.User, error) {
	if in.Email == "" {
		return nil, invalid("email", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name", "is required")
	}
	hash, err := s.hashPassword("password", in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:            in.Email,
		PasswordHash:     hash,
		Name:             in.Name,
		BirthDate:        in.BirthDate,
		BloodType:        in.BloodType,
		Allergies:        in.Allergies,
		ChronicDiseases:  in.ChronicDiseases,
		EmergencyContact: in.EmergencyContact,
	}
	if err := s.orm.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, s.translate("create user", err)
	}
	return s.GetUserByID(ctx, user.ID)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.orm.WithContext(ctx).Where("email = ?", email).Take(&user).Error; err != nil {
		return nil, s.translate("get user by email", err)
	}
	return &user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := s.orm.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, s.translate("get user by id", err)
	}
	return &user, nil
}

// VerifyPassword reports whether password belongs to the account with email.
// An unknown email and a wrong password both return false with a nil error.
func (s *Store) VerifyPassword(ctx context.Context, email, password string) (bool, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil, nil
}

func userColumns(p models.UserPatch) (map[string]interface{}, error) {
	cols := make(map[string]interface{})
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return nil, invalid("name", "must not be empty")
		}
		cols["name"] = *p.Name
	}
	if p.BirthDate != nil {
		cols["birth_date"] = *p.BirthDate
	}
	if p.BloodType != nil {
		cols["blood_type"] = *p.BloodType
	}
	if p.Allergies != nil {
		cols["allergies"] = *p.Allergies
	}
	if p.ChronicDiseases != nil {
		cols["chronic_diseases"] = *p.ChronicDiseases
	}
	if p.EmergencyContact != nil {
		cols["emergency_contact"] = *p.EmergencyContact
	}
	return cols, nil
}

// UpdateUser applies the profile fields set in p and returns the stored
// record. An empty patch returns the record unchanged.
func (s *Store) UpdateUser(ctx context.Context, id int64, p models.UserPatch) (*models.User, error) {
	cols, err := userColumns(p)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return s.GetUserByID(ctx, id)
	}

	var user models.User
	err = s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("id = ?", id).Take(&user).Error
	})
	if err != nil {
		return nil, s.translate("update user", err)
	}
	return &user, nil
}

// ChangePassword replaces the password of user id after checking current.
func (s *Store) ChangePassword(ctx context.Context, id int64, current, next string) error {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrInvalidPassword
	}
	hash, err := s.hashPassword("new_password", next)
	if err != nil {
		return err
	}

	// The old hash in the filter rejects a change that raced with this one.
	res := s.orm.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND password_hash = ?", id, user.PasswordHash).
		Update("password_hash", hash)
	if res.Error != nil {
		return s.translate("change password", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidPassword
	}
	return nil
}
